package model

// PaymentType selects which catalog price a buyer is compared against.
type PaymentType string

const (
	PaymentCash      PaymentType = "cash"
	PaymentFinancing PaymentType = "financing"
)

// BudgetSpec is the normalized form of a buyer's price constraint.
// A single value has Target == UpperBound; a range "A-B" has
// UpperBound = max(A,B) and Target = (A+B)/2.
type BudgetSpec struct {
	Target     float64 `json:"target"`
	UpperBound float64 `json:"upper_bound"`
}

// PreferenceRecord accumulates buyer preferences over a conversation.
// ClientName is optional and never participates in completeness.
type PreferenceRecord struct {
	ClientName   string      `json:"client_name,omitempty"`
	LocationCity string      `json:"location_city,omitempty"`
	BodyType     string      `json:"body_type,omitempty"`
	PaymentType  PaymentType `json:"payment_type,omitempty"`
	Transmission string      `json:"transmission,omitempty"`
	Budget       *BudgetSpec `json:"budget,omitempty"`
}

// Complete reports whether every required field has been collected.
func (r PreferenceRecord) Complete() bool {
	return r.BodyType != "" &&
		r.LocationCity != "" &&
		r.PaymentType != "" &&
		r.Transmission != "" &&
		r.Budget != nil
}

// Field identifies one of the tracked preference fields.
type Field string

const (
	FieldBodyType     Field = "body_type"
	FieldLocationCity Field = "location_city"
	FieldPaymentType  Field = "payment_type"
	FieldBudget       Field = "budget"
	FieldTransmission Field = "transmission"
)

// RequiredFields is the canonical ask order. When several fields are still
// missing, the next question targets the first missing one in this order.
var RequiredFields = []Field{
	FieldBodyType,
	FieldLocationCity,
	FieldPaymentType,
	FieldBudget,
	FieldTransmission,
}

// Extraction is the qualifier collaborator's structured output for one turn.
// Every field is present but possibly empty; empty means "not yet collected"
// and must never erase a previously filled value.
type Extraction struct {
	Message      string `json:"message"`
	ClientName   string `json:"client_name"`
	LocationCity string `json:"location_city"`
	BodyType     string `json:"body_type"`
	Transmission string `json:"transmission"`
	Budget       string `json:"budget"`
	PaymentType  string `json:"payment_type"`
}

// DialogueRole tags who authored a dialogue turn.
type DialogueRole string

const (
	RoleUser      DialogueRole = "user"
	RoleAssistant DialogueRole = "assistant"
)

// DialogueTurn is one role-tagged message in the conversation history.
type DialogueTurn struct {
	Role DialogueRole `json:"role"`
	Text string       `json:"text"`
}
