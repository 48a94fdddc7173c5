package validation

// LoginRequest is the payload for POST /api/login.
type LoginRequest struct {
	Matricule string `json:"matricule" validate:"required,max=64"`
}

// OrderItem is one requested part.
type OrderItem struct {
	Part     string `json:"part" validate:"required,max=128"`
	Quantity int    `json:"quantity" validate:"required,min=1,max=10000"`
}

// CreateOrderRequest is the payload for POST /api/orders. RequesterID
// defaults to the authenticated matricule.
type CreateOrderRequest struct {
	RequesterID string      `json:"requester_id,omitempty" validate:"omitempty,max=64"`
	Items       []OrderItem `json:"items" validate:"required,min=1,max=100,dive"`
}

// DeliveryRequest is the payload for deliveries and confirmations.
type DeliveryRequest struct {
	Part   string `json:"part" validate:"required,max=128"`
	Serial string `json:"serial" validate:"required,max=128"`
}

type FeedbackRequest struct {
	Description string `json:"description" validate:"required,max=1000"`
}

type LineStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=cancelled"`
}

type SearchRequest struct {
	Query string `json:"query" validate:"max=128"`
}

type CreatePartRequest struct {
	Identifier    string `json:"identifier" validate:"required,max=128"`
	AltIdentifier string `json:"alt_identifier" validate:"max=128"`
	Class         string `json:"class" validate:"omitempty,oneof=standard alternate"`
	Rack          string `json:"rack" validate:"max=64"`
	Packaging     int    `json:"packaging" validate:"min=0"`
	Unit          string `json:"unit" validate:"max=32"`
	Type          string `json:"type" validate:"max=64"`
	Description   string `json:"description" validate:"max=1000"`
	SortOrder     int    `json:"sort_order"`
}

// UpdatePartRequest changes only the fields that are present; at least one
// is required.
type UpdatePartRequest struct {
	AltIdentifier *string `json:"alt_identifier" validate:"omitempty,max=128"`
	Class         *string `json:"class" validate:"omitempty,oneof=standard alternate"`
	Rack          *string `json:"rack" validate:"omitempty,max=64"`
	Packaging     *int    `json:"packaging" validate:"omitempty,min=0"`
	Unit          *string `json:"unit" validate:"omitempty,max=32"`
	Type          *string `json:"type" validate:"omitempty,max=64"`
	Description   *string `json:"description" validate:"omitempty,max=1000"`
	SortOrder     *int    `json:"sort_order"`
}
