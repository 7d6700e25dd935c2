package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/farmconnect/marketplace-api/internal/core/ports"
)

// MaxImageBytes is the largest accepted product image upload.
const MaxImageBytes = 5 << 20

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ProductHandler handles HTTP requests for catalog operations.
type ProductHandler struct {
	service ports.ProductService
	images  ports.ImageStore // nil when uploads are not configured
}

func NewProductHandler(service ports.ProductService, images ports.ImageStore) *ProductHandler {
	return &ProductHandler{service: service, images: images}
}

// List handles GET /products.
//
// @Summary      Browse the catalog
// @Tags         products
// @Produce      json
// @Param        search    query     string  false  "Case-insensitive name search"
// @Param        category  query     string  false  "Category filter (all for none)"
// @Param        page      query     int     false  "Page number (default 1)"
// @Param        limit     query     int     false  "Page size (default 20, max 100)"
// @Success      200       {object}  productListResponse
// @Failure      400       {object}  errorResponse
// @Router       /products [get]
func (h *ProductHandler) List(c echo.Context) error {
	page, err := queryInt(c, "page")
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}

	res, err := h.service.ListProducts(c.Request().Context(), ports.ListProductsInput{
		Search:   c.QueryParam("search"),
		Category: c.QueryParam("category"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, productListResponse{
		Products: toProductResponses(res.Items),
		Pagination: paginationResponse{
			Total:      res.Total,
			Page:       res.Page,
			Limit:      res.Limit,
			TotalPages: res.TotalPages,
		},
	})
}

// Get handles GET /products/:id.
//
// @Summary      Get a product
// @Tags         products
// @Produce      json
// @Param        id   path      string  true  "Product ID"
// @Success      200  {object}  productEnvelope
// @Failure      404  {object}  errorResponse
// @Router       /products/{id} [get]
func (h *ProductHandler) Get(c echo.Context) error {
	detail, err := h.service.GetProduct(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, productEnvelope{Product: toProductResponse(*detail)})
}

// Mine handles GET /products/farmer/my-products.
//
// @Summary      List the caller's products
// @Tags         products
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  farmerProductsResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /products/farmer/my-products [get]
func (h *ProductHandler) Mine(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	items, err := h.service.ListFarmerProducts(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, farmerProductsResponse{Products: toProductResponses(items)})
}

// Create handles POST /products.
//
// @Summary      Create a product
// @Tags         products
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createProductRequest  true  "Product details"
// @Success      201   {object}  productEnvelope
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /products [post]
func (h *ProductHandler) Create(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req createProductRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	detail, err := h.service.CreateProduct(c.Request().Context(), toCreateProductInput(req, user.ID))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, productEnvelope{
		Message: "Product created successfully",
		Product: toProductResponse(*detail),
	})
}

// Update handles PUT /products/:id.
//
// @Summary      Update a product
// @Tags         products
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                true  "Product ID"
// @Param        body  body      updateProductRequest  true  "Fields to change"
// @Success      200   {object}  productEnvelope
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /products/{id} [put]
func (h *ProductHandler) Update(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req updateProductRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	detail, err := h.service.UpdateProduct(c.Request().Context(), toUpdateProductInput(req, c.Param("id"), user.ID))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, productEnvelope{
		Message: "Product updated successfully",
		Product: toProductResponse(*detail),
	})
}

// Delete handles DELETE /products/:id.
//
// @Summary      Delete a product
// @Tags         products
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Product ID"
// @Success      200  {object}  messageResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /products/{id} [delete]
func (h *ProductHandler) Delete(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	if err := h.service.DeleteProduct(c.Request().Context(), c.Param("id"), user.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Product deleted successfully"})
}

// UploadImage handles POST /products/images.
//
// @Summary      Upload a product image
// @Tags         products
// @Accept       mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        image  formData  file  true  "JPEG, PNG, WebP or GIF, at most 5 MiB"
// @Success      201    {object}  imageUploadResponse
// @Failure      400    {object}  errorResponse
// @Failure      413    {object}  errorResponse
// @Router       /products/images [post]
func (h *ProductHandler) UploadImage(c echo.Context) error {
	if h.images == nil {
		return echo.NewHTTPError(http.StatusNotFound, "image uploads are not configured")
	}
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "image file is required")
	}
	if fh.Size > MaxImageBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "image must be at most 5 MiB")
	}

	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	body, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}
	if len(body) > MaxImageBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "image must be at most 5 MiB")
	}

	mime := mimetype.Detect(body)
	ext, ok := allowedImageTypes[mime.String()]
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "image must be jpeg, png, webp or gif")
	}

	key := fmt.Sprintf("products/%s/%s%s", user.ID, uuid.NewString(), ext)
	url, err := h.images.Put(c.Request().Context(), key, mime.String(), body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, imageUploadResponse{URL: url})
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be an integer")
	}
	return n, nil
}
