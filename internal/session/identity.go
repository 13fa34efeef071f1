package session

// Role es el rol del principal autenticado.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleParent  Role = "PARENT"
	RoleLearner Role = "LEARNER"
)

// Valid indica si el rol es uno de los reconocidos.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleParent, RoleLearner:
		return true
	}
	return false
}

// Caregiver indica si el rol puede actuar en nombre de learners.
func (r Role) Caregiver() bool {
	return r == RoleAdmin || r == RoleParent
}

// Identity es el principal autenticado. El token NO vive acá: lo mantiene
// el transport y el storage por separado.
type Identity struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Valid aplica el invariante de identidad: id presente y rol reconocido.
// Cualquier valor que no lo cumpla se trata como nil (no autenticado),
// nunca como identidad parcialmente válida.
func (i *Identity) Valid() bool {
	return i != nil && i.ID != 0 && i.Role.Valid()
}
