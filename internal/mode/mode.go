package mode

// Mode es el contexto de interacción activo de la UI.
type Mode string

const (
	// ModeLearner: vista child-facing.
	ModeLearner Mode = "LEARNER"
	// ModeGrownUp: vista caregiver-facing.
	ModeGrownUp Mode = "GROWN_UP"
)

// Parse valida un valor persistido. Cualquier otra cosa se descarta.
func Parse(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeLearner, ModeGrownUp:
		return Mode(s), true
	}
	return "", false
}

// Learner es un learner en cuyo nombre puede actuar un caregiver.
type Learner struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// Familias de cache learner-scoped. Se invalidan en bloque ANTES de que el
// nuevo SelectedLearner sea observable, para que ningún read en vuelo
// renderice datos del learner anterior bajo la identidad del nuevo.
const (
	FamilyLessons  = "lessons"
	FamilyQuizzes  = "quizzes"
	FamilyProgress = "progress"
	FamilyMastery  = "mastery"
)

// LearnerFamilies lista las cuatro familias en el orden de invalidación.
var LearnerFamilies = []string{
	FamilyLessons,
	FamilyQuizzes,
	FamilyProgress,
	FamilyMastery,
}
