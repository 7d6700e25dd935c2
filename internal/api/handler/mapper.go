package handler

import (
	"github.com/farmconnect/marketplace-api/internal/core/domain"
	"github.com/farmconnect/marketplace-api/internal/core/ports"
)

// --- Request → Service input ---

func toRegisterInput(req registerRequest) ports.RegisterInput {
	return ports.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	}
}

func toCreateProductInput(req createProductRequest, farmerID string) ports.CreateProductInput {
	return ports.CreateProductInput{
		FarmerID:    farmerID,
		Name:        req.Name,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Category:    req.Category,
		Image:       req.Image,
		Description: req.Description,
	}
}

func toUpdateProductInput(req updateProductRequest, productID, farmerID string) ports.UpdateProductInput {
	return ports.UpdateProductInput{
		ProductID:   productID,
		FarmerID:    farmerID,
		Name:        req.Name,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Category:    req.Category,
		Image:       req.Image,
		Description: req.Description,
	}
}

func toPlaceOrderInput(req createOrderRequest, buyerID, idempotencyKey string) ports.PlaceOrderInput {
	cart := domain.NewCart()
	for _, l := range req.Products {
		cart.Add(l.ProductID, l.Quantity)
	}
	return ports.PlaceOrderInput{
		BuyerID:         buyerID,
		Cart:            cart,
		DeliveryAddress: req.DeliveryAddress,
		ContactNumber:   req.ContactNumber,
		IdempotencyKey:  idempotencyKey,
	}
}

// --- Service output → Response ---

func toUserResponse(u *domain.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

func toPartyResponse(p ports.PartySummary) partyResponse {
	return partyResponse{ID: p.ID, Name: p.Name, Email: p.Email}
}

func toProductResponse(d ports.ProductDetail) productResponse {
	return productResponse{
		ID:          d.ID,
		Name:        d.Name,
		Price:       d.Price,
		Quantity:    d.Quantity,
		Category:    d.Category,
		Image:       d.Image,
		Description: d.Description,
		Farmer:      toPartyResponse(d.Farmer),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func toProductResponses(items []ports.ProductDetail) []productResponse {
	out := make([]productResponse, 0, len(items))
	for _, d := range items {
		out = append(out, toProductResponse(d))
	}
	return out
}

func toOrderResponse(d *ports.OrderDetail) orderResponse {
	lines := make([]orderLineResponse, 0, len(d.Lines))
	for _, l := range d.Lines {
		lines = append(lines, orderLineResponse{
			ProductID: l.ProductID,
			Name:      l.ProductName,
			Image:     l.Image,
			Quantity:  l.Quantity,
			Price:     l.Price,
		})
	}
	history := make([]statusHistoryResponse, 0, len(d.StatusHistory))
	for _, h := range d.StatusHistory {
		history = append(history, statusHistoryResponse{
			Status:    h.Status,
			Timestamp: h.Timestamp,
			ActorID:   h.ActorID,
		})
	}
	return orderResponse{
		ID:              d.ID,
		Buyer:           toPartyResponse(d.Buyer),
		Seller:          toPartyResponse(d.Seller),
		Products:        lines,
		TotalAmount:     d.TotalAmount,
		Status:          d.Status,
		DeliveryAddress: d.DeliveryAddress,
		ContactNumber:   d.ContactNumber,
		StatusHistory:   history,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func toOrderResponses(items []ports.OrderDetail) []orderResponse {
	out := make([]orderResponse, 0, len(items))
	for i := range items {
		out = append(out, toOrderResponse(&items[i]))
	}
	return out
}
