package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/glekoz/ticket-images/internal/models"
)

type createTicketRequest struct {
	Title       string `json:"title" validate:"required,max=100"`
	Description string `json:"description" validate:"required"`
	NumImages   int    `json:"num_images" validate:"required,min=1"`
}

func (s *Server) createTicket(c *gin.Context) {
	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ticket, err := s.Tickets.CreateTicket(c.Request.Context(), models.Ticket{
		UserID:      currentUser(c),
		Title:       req.Title,
		Description: req.Description,
		NumImages:   req.NumImages,
	})
	if err != nil {
		s.log.Error("create ticket failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create ticket"})
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

func (s *Server) listTickets(c *gin.Context) {
	f := models.TicketFilter{
		UserID:  currentUser(c),
		Page:    1,
		PerPage: s.PerPage,
	}
	if status := c.Query("status"); status != "" {
		f.Status = models.TicketStatus(strings.ToUpper(status))
	}
	if created := c.Query("created"); created != "" {
		day, err := time.Parse("2006-01-02", created)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "created must be YYYY-MM-DD"})
			return
		}
		f.Created = day
	}
	if page, err := strconv.Atoi(c.Query("page")); err == nil && page > 0 {
		f.Page = page
	}
	if perPage, err := strconv.Atoi(c.Query("page_size")); err == nil && perPage > 0 && perPage <= 100 {
		f.PerPage = perPage
	}

	tickets, total, err := s.Tickets.ListTickets(c.Request.Context(), f)
	if err != nil {
		s.log.Error("list tickets failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list tickets"})
		return
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   total,
		"page":    f.Page,
		"results": tickets,
	})
}

func (s *Server) ticketFromPath(c *gin.Context) (models.Ticket, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ticket id"})
		return models.Ticket{}, false
	}
	ticket, err := s.Tickets.GetUserTicket(c.Request.Context(), id, currentUser(c))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
			return models.Ticket{}, false
		}
		s.log.Error("ticket lookup failed", "ticket_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load ticket"})
		return models.Ticket{}, false
	}
	return ticket, true
}

func (s *Server) getTicket(c *gin.Context) {
	ticket, ok := s.ticketFromPath(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (s *Server) listImages(c *gin.Context) {
	ticket, ok := s.ticketFromPath(c)
	if !ok {
		return
	}
	images, err := s.Tickets.ListImages(c.Request.Context(), ticket.ID)
	if err != nil {
		s.log.Error("list images failed", "ticket_id", ticket.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list images"})
		return
	}
	if images == nil {
		images = []models.Image{}
	}
	c.JSON(http.StatusOK, images)
}

// uploadImage validates the file and hands the bytes to the queue. The
// 201 here means "accepted for ingestion": the remote upload and the
// image row happen later, on the worker.
func (s *Server) uploadImage(c *gin.Context) {
	ticket, ok := s.ticketFromPath(c)
	if !ok {
		return
	}
	if ticket.Status == models.TicketStatusCompleted {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot upload more images. Ticket status is completed."})
		return
	}

	header, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	if header.Size > s.MaxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("File size exceeds the maximum limit of %d MB.", s.MaxUploadBytes>>20),
		})
		return
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
	if _, allowed := s.AllowedExts[ext]; !allowed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file format"})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read image"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, s.MaxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read image"})
		return
	}
	if int64(len(data)) > s.MaxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("File size exceeds the maximum limit of %d MB.", s.MaxUploadBytes>>20),
		})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is empty"})
		return
	}

	msg := models.IngestImageMessage{TicketID: ticket.ID, Image: data}
	if err := s.Queue.Publish(c.Request.Context(), msg); err != nil {
		s.log.Error("enqueue upload failed", "ticket_id", ticket.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not accept upload"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Image uploaded successfully"})
}
