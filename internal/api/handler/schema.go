package handler

import "time"

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// --- Auth ---

type registerRequest struct {
	Name     string `json:"name"     validate:"required"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role"     validate:"required,oneof=farmer consumer"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type authResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    userResponse `json:"user"`
}

type profileResponse struct {
	User userResponse `json:"user"`
}

// --- Products ---

type createProductRequest struct {
	Name        string  `json:"name"        validate:"required,max=200"`
	Price       float64 `json:"price"       validate:"gte=0"`
	Quantity    int     `json:"quantity"    validate:"gte=0"`
	Category    string  `json:"category"    validate:"required"`
	Image       string  `json:"image"       validate:"required"`
	Description string  `json:"description" validate:"max=2000"`
}

// updateProductRequest carries a partial update; absent fields are left unchanged.
type updateProductRequest struct {
	Name        *string  `json:"name,omitempty"        validate:"omitempty,max=200"`
	Price       *float64 `json:"price,omitempty"       validate:"omitempty,gte=0"`
	Quantity    *int     `json:"quantity,omitempty"    validate:"omitempty,gte=0"`
	Category    *string  `json:"category,omitempty"`
	Image       *string  `json:"image,omitempty"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=2000"`
}

type partyResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type productResponse struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Price       float64       `json:"price"`
	Quantity    int           `json:"quantity"`
	Category    string        `json:"category"`
	Image       string        `json:"image"`
	Description string        `json:"description,omitempty"`
	Farmer      partyResponse `json:"farmer"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type productEnvelope struct {
	Message string          `json:"message,omitempty"`
	Product productResponse `json:"product"`
}

type paginationResponse struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

type productListResponse struct {
	Products   []productResponse  `json:"products"`
	Pagination paginationResponse `json:"pagination"`
}

type farmerProductsResponse struct {
	Products []productResponse `json:"products"`
}

type imageUploadResponse struct {
	URL string `json:"url"`
}

// --- Orders ---

// Order requests use the camelCase keys the web frontend sends.
type orderLineRequest struct {
	ProductID string `json:"productID" validate:"required"`
	Quantity  int    `json:"quantity"  validate:"gte=1"`
}

type createOrderRequest struct {
	Products        []orderLineRequest `json:"products"        validate:"required,min=1,dive"`
	DeliveryAddress string             `json:"deliveryAddress" validate:"required"`
	ContactNumber   string             `json:"contactNumber"   validate:"required"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type orderLineResponse struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Image     string  `json:"image,omitempty"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type statusHistoryResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actor_id,omitempty"`
}

type orderResponse struct {
	ID              string                  `json:"id"`
	Buyer           partyResponse           `json:"buyer"`
	Seller          partyResponse           `json:"seller"`
	Products        []orderLineResponse     `json:"products"`
	TotalAmount     float64                 `json:"total_amount"`
	Status          string                  `json:"status"`
	DeliveryAddress string                  `json:"delivery_address"`
	ContactNumber   string                  `json:"contact_number"`
	StatusHistory   []statusHistoryResponse `json:"status_history"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

type orderEnvelope struct {
	Message string        `json:"message,omitempty"`
	Order   orderResponse `json:"order"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
}

// --- Health ---

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
}
