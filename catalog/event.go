package catalog

// Operation kind of mutation that caused an Event
type Operation string

const (
	OperationAdd    Operation = "add"
	OperationRemove Operation = "remove"
	OperationImport Operation = "import"
	OperationReset  Operation = "reset"
)

// Event change notification raised after every successful mutation
type Event struct {
	Operation Operation              `json:"operation"`
	Path      string                 `json:"path,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}
