package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gantim/nvcloud-api-and-bot/pkg/auth"
	"github.com/gantim/nvcloud-api-and-bot/pkg/services"
)

// TicketHandlers exposes the provisioning ticket surface.
type TicketHandlers struct {
	svc     *services.ContainerService
	authSvc *auth.Service
	logger  *slog.Logger
}

func NewTicketHandlers(svc *services.ContainerService, authSvc *auth.Service, logger *slog.Logger) *TicketHandlers {
	return &TicketHandlers{
		svc:     svc,
		authSvc: authSvc,
		logger:  logger,
	}
}

func ticketIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"error":   "Bad Request",
			"message": "invalid ticket id",
		})
		return uuid.Nil, false
	}
	return id, true
}

// Create persists a provisioning ticket for the caller.
func (h *TicketHandlers) Create(c *gin.Context) {
	user, ok := resolveCaller(c, h.authSvc)
	if !ok {
		return
	}
	var req services.CreateContainerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ticket, err := h.svc.CreateTicket(c.Request.Context(), req, user)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

// List returns all tickets. Administrators only.
func (h *TicketHandlers) List(c *gin.Context) {
	user, ok := resolveCaller(c, h.authSvc)
	if !ok {
		return
	}
	tickets, err := h.svc.Tickets(c.Request.Context(), user)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tickets)
}

// Delete removes a ticket: owners while it is open, administrators always.
func (h *TicketHandlers) Delete(c *gin.Context) {
	user, ok := resolveCaller(c, h.authSvc)
	if !ok {
		return
	}
	id, ok := ticketIDParam(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteTicket(c.Request.Context(), id, user); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusOK)
}

// Consume turns an open ticket into exactly one container. Consuming an
// already-closed ticket is a conflict.
func (h *TicketHandlers) Consume(c *gin.Context) {
	if _, ok := resolveCaller(c, h.authSvc); !ok {
		return
	}
	id, ok := ticketIDParam(c)
	if !ok {
		return
	}
	info, err := h.svc.ConsumeTicket(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}
