package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"bookreview-backend/internal/domains/book/model"
	"bookreview-backend/internal/domains/book/service"
	"bookreview-backend/internal/shared/middleware"
	"bookreview-backend/internal/shared/response"
)

const (
	bookFormField  = "book"
	imageFormField = "image"
)

// =====================================================
// BOOK HANDLER
// =====================================================

type BookHandler struct {
	bookService   service.ServiceInterface
	maxImageBytes int64
}

func NewBookHandler(bookService service.ServiceInterface, maxImageBytes int64) *BookHandler {
	return &BookHandler{
		bookService:   bookService,
		maxImageBytes: maxImageBytes,
	}
}

// RegisterRoutes mounts the book routes on rg. /bestrating is registered
// before /:id so it is never captured as an id.
func (h *BookHandler) RegisterRoutes(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	books := rg.Group("/books")
	{
		books.GET("", h.ListBooks)
		books.GET("/bestrating", h.TopRated)
		books.GET("/:id", h.GetBook)
	}

	protected := books.Group("", auth)
	{
		protected.POST("", h.CreateBook)
		protected.PUT("/:id", h.UpdateBook)
		protected.DELETE("/:id", h.DeleteBook)
		protected.POST("/:id/rating", h.RateBook)
	}
}

// =====================================================
// PUBLIC ENDPOINTS
// =====================================================

// ListBooks GET /api/books
func (h *BookHandler) ListBooks(c *gin.Context) {
	books, err := h.bookService.ListBooks(c.Request.Context())
	if err != nil {
		respondError(c, err, nil)
		return
	}

	response.Success(c, http.StatusOK, books)
}

// TopRated GET /api/books/bestrating?limit=3
func (h *BookHandler) TopRated(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	books, err := h.bookService.TopRated(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err, nil)
		return
	}

	response.Success(c, http.StatusOK, books)
}

// GetBook GET /api/books/:id
func (h *BookHandler) GetBook(c *gin.Context) {
	book, err := h.bookService.GetBook(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, readRules)
		return
	}

	response.Success(c, http.StatusOK, book)
}

// =====================================================
// AUTHENTICATED ENDPOINTS
// =====================================================

// CreateBook POST /api/books (multipart: book=<json>, image=<file>)
func (h *BookHandler) CreateBook(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	raw, upload, err := h.readBookForm(c)
	if err != nil {
		respondError(c, err, nil)
		return
	}

	var req model.CreateBookRequest
	if err := h.decodePayload(c, userID, raw, &req); err != nil {
		respondError(c, err, nil)
		return
	}

	if _, err := h.bookService.CreateBook(c.Request.Context(), userID, req, upload); err != nil {
		respondError(c, err, nil)
		return
	}

	response.Message(c, http.StatusCreated, "Book saved")
}

// UpdateBook PUT /api/books/:id (multipart with optional image, or plain JSON)
func (h *BookHandler) UpdateBook(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	raw, upload, err := h.readBookForm(c)
	if err != nil {
		respondError(c, err, nil)
		return
	}

	var req model.UpdateBookRequest
	if err := h.decodePayload(c, userID, raw, &req); err != nil {
		respondError(c, err, nil)
		return
	}

	if err := h.bookService.UpdateBook(c.Request.Context(), userID, c.Param("id"), req, upload); err != nil {
		respondError(c, err, updateRules)
		return
	}

	response.Message(c, http.StatusOK, "Book updated")
}

// DeleteBook DELETE /api/books/:id
func (h *BookHandler) DeleteBook(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	if err := h.bookService.DeleteBook(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, err, deleteRules)
		return
	}

	response.Message(c, http.StatusOK, "Book deleted")
}

// RateBook POST /api/books/:id/rating {"rating": 1..5}
func (h *BookHandler) RateBook(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	var req model.RatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, model.NewValidationError(err), nil)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, model.NewValidationError(err), nil)
		return
	}

	if req.UserID != "" && req.UserID != userID {
		log.Warn().
			Str("request_id", c.GetString(middleware.ContextRequestIDKey)).
			Str("user_id", userID).
			Msg("Ignoring userId in rating payload")
	}

	book, err := h.bookService.AddRating(c.Request.Context(), userID, c.Param("id"), *req.Rating)
	if err != nil {
		respondError(c, err, ratingRules)
		return
	}

	response.Success(c, http.StatusOK, book)
}

// =====================================================
// HELPER FUNCTIONS
// =====================================================

// readBookForm extracts the JSON payload and the optional image.
// Multipart requests carry the payload in the "book" field; anything else is
// read as a raw JSON body.
func (h *BookHandler) readBookForm(c *gin.Context) ([]byte, *model.ImageUpload, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		raw, err := c.GetRawData()
		if err != nil {
			return nil, nil, model.NewValidationError(fmt.Errorf("read body: %w", err))
		}
		return raw, nil, nil
	}

	fileHeader, err := c.FormFile(imageFormField)
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		return nil, nil, model.NewValidationError(fmt.Errorf("invalid multipart form: %w", err))
	}

	raw := []byte(c.PostForm(bookFormField))
	if fileHeader == nil {
		return raw, nil, nil
	}

	upload, err := h.readUpload(fileHeader)
	if err != nil {
		return nil, nil, err
	}
	return raw, upload, nil
}

// readUpload reads at most maxImageBytes+1 so oversized files are rejected by
// the image validator without buffering them whole.
func (h *BookHandler) readUpload(fileHeader *multipart.FileHeader) (*model.ImageUpload, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, model.NewValidationError(fmt.Errorf("open image: %w", err))
	}
	defer file.Close()

	var reader io.Reader = file
	if h.maxImageBytes > 0 {
		reader = io.LimitReader(file, h.maxImageBytes+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, model.NewValidationError(fmt.Errorf("read image: %w", err))
	}

	return &model.ImageUpload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (h *BookHandler) decodePayload(c *gin.Context, userID string, raw []byte, dst interface{}) error {
	ignored, err := model.DecodeBookPayload(raw, dst)
	if len(ignored) > 0 {
		log.Warn().
			Str("request_id", c.GetString(middleware.ContextRequestIDKey)).
			Str("user_id", userID).
			Strs("fields", ignored).
			Msg("Ignoring identity fields in book payload")
	}
	return err
}
