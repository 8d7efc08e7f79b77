package gpadmin

// Action is a button offered by the index page: main actions sit above the
// table, row actions apply to selected entities.
type Action struct {
	Name  string
	Title string
	Icon  string

	// Confirm asks for confirmation before running the action.
	Confirm bool
}

// NewAction creates an action named name, titled with the same name
func NewAction(name string) Action {
	return Action{Name: name, Title: name}
}

var (
	// ActionNew opens the creation form.
	ActionNew = Action{Name: "new", Title: "new", Icon: "plus"}
	// ActionDelete deletes the selected entities.
	ActionDelete = Action{Name: "delete", Title: "delete", Icon: "trash", Confirm: true}
)

// MainActionsProvider lets a definition replace the default main actions
type MainActionsProvider interface {
	MainActions() []Action
}

// ActionsProvider lets a definition replace the default row actions
type ActionsProvider interface {
	Actions() []Action
}
