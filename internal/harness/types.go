package harness

// Script is one engine dialogue plus the facade steps that drive it.
type Script struct {
	// Name identifies the script and its golden file.
	Name string `yaml:"name"`

	// Description explains what the script exercises.
	Description string `yaml:"description"`

	// Engine is the conversation, in the order requests must arrive.
	Engine []Exchange `yaml:"engine"`

	// Steps are facade operations, run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Exchange is one request the engine expects and its answer.
type Exchange struct {
	// Request is the exact request line, including the trailing ';'.
	Request string `yaml:"request"`

	// Block holds the payload lines that must follow a block-mode request.
	Block []string `yaml:"block,omitempty"`

	// Reply is the result payload.
	Reply string `yaml:"reply,omitempty"`

	// Error, if set, is sent as "!!! " + Error instead of Reply.
	Error string `yaml:"error,omitempty"`
}

// Step invokes one facade operation.
type Step struct {
	// Op names the operation, e.g. "add_vertex". See Ops.
	Op string `yaml:"op"`

	// Graph is the alias of the graph the operation acts on.
	Graph string `yaml:"graph,omitempty"`

	// As binds a graph returned by the operation to an alias.
	As string `yaml:"as,omitempty"`

	// Args are the operation's arguments.
	Args []string `yaml:"args,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect checks a step's outcome.
type Expect struct {
	// Error is the expected error code.
	Error string `yaml:"error,omitempty"`

	// Result is the expected returned value, rendered as text.
	Result *string `yaml:"result,omitempty"`
}

// Assertion checks the final state.
type Assertion struct {
	Type  string `yaml:"type"`
	Graph string `yaml:"graph,omitempty"`

	// Count is used by the *_count assertions.
	Count int `yaml:"count,omitempty"`

	// ID, Kind, Data and Label are used by vertex. Empty Kind, Data
	// and Label are not checked.
	ID    string `yaml:"id,omitempty"`
	Kind  string `yaml:"kind,omitempty"`
	Data  string `yaml:"data,omitempty"`
	Label string `yaml:"label,omitempty"`

	// Name is used by graph_name, State by rewrite_state and Request by
	// request_count.
	Name    string `yaml:"name,omitempty"`
	State   string `yaml:"state,omitempty"`
	Request string `yaml:"request,omitempty"`
}

// Assertion type constants.
const (
	AssertVertexCount  = "vertex_count"
	AssertEdgeCount    = "edge_count"
	AssertBangBoxCount = "bang_box_count"
	AssertVertex       = "vertex"
	AssertGraphName    = "graph_name"
	AssertRewriteState = "rewrite_state"
	AssertRequestCount = "request_count"
)

// Entry is one line of the wire transcript.
type Entry struct {
	Request []string
	Reply   string
}

// Result is the outcome of a run.
type Result struct {
	// Pass is true when every step and assertion held and the whole
	// conversation was consumed.
	Pass bool

	// Transcript is every exchange in order, as the engine saw it.
	Transcript []Entry

	// Outcomes holds each step's rendered result or error code.
	Outcomes []string

	// Errors describes every failure.
	Errors []string

	// Graphs are the final models by alias.
	Graphs map[string]GraphSummary
}

// GraphSummary is a rendered final model.
type GraphSummary struct {
	Name         string
	Lines        []string
	RewriteState string
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Graphs: make(map[string]GraphSummary),
	}
}

// AddError records a failure.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}
