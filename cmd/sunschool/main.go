package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sunschool/sunschool-go/internal/app"
	"github.com/sunschool/sunschool-go/internal/config"
	"github.com/sunschool/sunschool-go/internal/mode"
	"github.com/sunschool/sunschool-go/internal/nav"
	"github.com/sunschool/sunschool-go/internal/observability/logger"
	"github.com/sunschool/sunschool-go/internal/session"
	"github.com/sunschool/sunschool-go/internal/validation"
)

// toastPrinter muestra las notificaciones user-visible en la terminal.
type toastPrinter struct{}

func (toastPrinter) Success(title, detail string) {
	fmt.Printf("✔ %s — %s\n", title, detail)
}

func (toastPrinter) Failure(title, detail string) {
	fmt.Fprintf(os.Stderr, "✘ %s — %s\n", title, detail)
}

// confirmPrompt pide confirmación por stdin para switches destructivos.
func confirmPrompt(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	s := strings.ToLower(strings.TrimSpace(line))
	return s == "y" || s == "yes"
}

func main() {
	// Load .env file if it exists; sin .env seguimos con el env del sistema
	_ = godotenv.Load()

	var (
		cfgPath string
		out     = envOr("SUNSCHOOL_OUT", "text")
	)

	root := &cobra.Command{
		Use:   "sunschool",
		Short: "CLI cliente para sunschool (sesión, modo y learners)",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init(logger.Config{
				Env:     envOr("APP_ENV", "dev"),
				Level:   envOr("LOG_LEVEL", "warn"),
				AppName: "sunschool-cli",
			})
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", envOr("SUNSCHOOL_CONFIG", ""), "Ruta al YAML de configuración (env SUNSCHOOL_CONFIG)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	build := func(ctx context.Context) (*app.Container, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, err
		}
		c, err := app.New(cfg, app.Options{
			Notifier: toastPrinter{},
			Confirm:  confirmPrompt,
			Navigator: nav.Func(func(r nav.Route) error {
				fmt.Printf("→ %s\n", r)
				return nil
			}),
		})
		if err != nil {
			return nil, err
		}
		if err := c.Start(ctx); err != nil {
			return nil, err
		}
		return c, nil
	}

	print := func(v any) {
		if out == "json" {
			b, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(b))
			return
		}
		fmt.Println(v)
	}

	// login
	var loginUser, loginPass string
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Iniciar sesión y persistir el token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if loginUser == "" || loginPass == "" {
				return fmt.Errorf("--username y --password son requeridos")
			}
			ctx := cmd.Context()
			c, err := build(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(ctx)
			ident, err := c.Session.Login(ctx, session.LoginRequest{
				Username: loginUser, Password: loginPass,
			})
			if err != nil {
				return err
			}
			c.Selector.Init(ctx)
			c.Nav.Reconcile()
			if out == "json" {
				print(ident)
			}
			return nil
		},
	}
	loginCmd.Flags().StringVar(&loginUser, "username", "", "Usuario")
	loginCmd.Flags().StringVar(&loginPass, "password", "", "Contraseña")

	// register
	var reg session.RegisterRequest
	var regRole string
	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Crear cuenta e iniciar sesión",
		RunE: func(cmd *cobra.Command, args []string) error {
			if reg.Username == "" || reg.Password == "" {
				return fmt.Errorf("--username y --password son requeridos")
			}
			if !validation.ValidUsername(reg.Username) {
				return fmt.Errorf("username inválido: minúsculas, dígitos y ._- (3..32)")
			}
			if err := validation.CheckPassword(reg.Password); err != nil {
				return err
			}
			if err := validation.CheckEmail(reg.Email); err != nil {
				return err
			}
			reg.Role = session.Role(strings.ToUpper(regRole))
			if !reg.Role.Valid() {
				return fmt.Errorf("--role debe ser ADMIN|PARENT|LEARNER")
			}
			if reg.Role == session.RoleLearner {
				if err := validation.CheckGradeLevel(reg.GradeLevel); err != nil {
					return err
				}
			}
			ctx := cmd.Context()
			c, err := build(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(ctx)
			ident, err := c.Session.Register(ctx, reg)
			if err != nil {
				return err
			}
			c.Nav.Reconcile()
			if out == "json" {
				print(ident)
			}
			return nil
		},
	}
	registerCmd.Flags().StringVar(&reg.Username, "username", "", "Usuario")
	registerCmd.Flags().StringVar(&reg.Email, "email", "", "Email")
	registerCmd.Flags().StringVar(&reg.Name, "name", "", "Nombre visible")
	registerCmd.Flags().StringVar(&reg.Password, "password", "", "Contraseña")
	registerCmd.Flags().StringVar(&regRole, "role", "PARENT", "Rol: ADMIN|PARENT|LEARNER")
	registerCmd.Flags().Int64Var(&reg.ParentID, "parent-id", 0, "ID del parent (para rol LEARNER)")
	registerCmd.Flags().IntVar(&reg.GradeLevel, "grade-level", 0, "Grade level (para rol LEARNER)")

	// logout
	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Cerrar sesión y limpiar todo el estado local",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := build(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(ctx)
			err = c.Session.Logout(ctx)
			c.Nav.Reconcile()
			return err
		},
	}

	// whoami
	whoamiCmd := &cobra.Command{
		Use:   "whoami",
		Short: "Mostrar la identidad de la sesión persistida",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := build(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(ctx)
			ident := c.Session.Identity()
			if ident == nil {
				if ierr := c.Session.InitError(); ierr != nil {
					return fmt.Errorf("init error: %w", ierr)
				}
				fmt.Println("not logged in")
				return nil
			}
			if out == "json" {
				print(ident)
				return nil
			}
			fmt.Printf("%s (id=%d, role=%s) mode=%s\n",
				ident.Name, ident.ID, ident.Role, c.Selector.Mode())
			return nil
		},
	}

	// learners
	learnersCmd := &cobra.Command{Use: "learners", Short: "Operaciones sobre learners disponibles"}

	learnersListCmd := &cobra.Command{
		Use:   "list",
		Short: "Listar los learners del caregiver",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := build(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(ctx)
			list := c.Selector.AvailableLearners()
			if out == "json" {
				print(list)
				return nil
			}
			sel := c.Selector.SelectedLearner()
			for _, l := range list {
				marker := " "
				if sel != nil && sel.ID == l.ID {
					marker = "*"
				}
				fmt.Printf("%s %d\t%s\n", marker, l.ID, l.Name)
			}
			if len(list) == 0 {
				fmt.Println("no learners available")
			}
			return nil
		},
	}

	var selectID int64
	learnersSelectCmd := &cobra.Command{
		Use:   "select",
		Short: "Poner un learner en scope (invalida cache y fuerza modo LEARNER)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if selectID == 0 {
				return fmt.Errorf("--id es requerido")
			}
			ctx := cmd.Context()
			c, err := build(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(ctx)
			if err := c.Selector.SelectLearner(ctx, mode.Learner{ID: selectID}); err != nil {
				return err
			}
			c.Nav.Reconcile()
			if sel := c.Selector.SelectedLearner(); sel != nil {
				fmt.Printf("selected: %d %s\n", sel.ID, sel.Name)
			}
			return nil
		},
	}
	learnersSelectCmd.Flags().Int64Var(&selectID, "id", 0, "ID del learner")

	learnersCmd.AddCommand(learnersListCmd)
	learnersCmd.AddCommand(learnersSelectCmd)

	// mode
	modeCmd := &cobra.Command{Use: "mode", Short: "Modo de interacción (LEARNER|GROWN_UP)"}

	modeShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Mostrar el modo activo",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := build(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(ctx)
			fmt.Println(c.Selector.Mode())
			return nil
		},
	}

	modeToggleCmd := &cobra.Command{
		Use:   "toggle",
		Short: "Alternar el modo y navegar a la vista correspondiente",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := build(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(ctx)
			if err := c.Selector.ToggleMode(ctx); err != nil {
				return err
			}
			c.Nav.Reconcile()
			fmt.Println(c.Selector.Mode())
			return nil
		},
	}

	modeCmd.AddCommand(modeShowCmd)
	modeCmd.AddCommand(modeToggleCmd)

	root.AddCommand(loginCmd)
	root.AddCommand(registerCmd)
	root.AddCommand(logoutCmd)
	root.AddCommand(whoamiCmd)
	root.AddCommand(learnersCmd)
	root.AddCommand(modeCmd)

	defer func() { _ = logger.Sync() }()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
