package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gantim/nvcloud-api-and-bot/pkg/auth"
	"github.com/gantim/nvcloud-api-and-bot/pkg/database/models"
	"github.com/gantim/nvcloud-api-and-bot/pkg/services"
)

// ContainerHandlers exposes the container lifecycle and telemetry surface.
type ContainerHandlers struct {
	svc     *services.ContainerService
	authSvc *auth.Service
	logger  *slog.Logger
}

func NewContainerHandlers(svc *services.ContainerService, authSvc *auth.Service, logger *slog.Logger) *ContainerHandlers {
	return &ContainerHandlers{
		svc:     svc,
		authSvc: authSvc,
		logger:  logger,
	}
}

func vmidParam(c *gin.Context) (int, bool) {
	vmid, err := strconv.Atoi(c.Param("vmid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"error":   "Bad Request",
			"message": "invalid vmid",
		})
		return 0, false
	}
	return vmid, true
}

// List returns the caller's containers with live status.
func (h *ContainerHandlers) List(c *gin.Context) {
	user, ok := resolveCaller(c, h.authSvc)
	if !ok {
		return
	}
	infos, err := h.svc.Containers(c.Request.Context(), user)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, infos)
}

// Create provisions a container directly, without a ticket.
func (h *ContainerHandlers) Create(c *gin.Context) {
	user, ok := resolveCaller(c, h.authSvc)
	if !ok {
		return
	}
	var req services.CreateContainerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	info, err := h.svc.CreateContainer(c.Request.Context(), req, user)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

// Start powers the container on.
func (h *ContainerHandlers) Start(c *gin.Context) {
	h.lifecycle(c, h.svc.StartContainer)
}

// Stop powers the container off.
func (h *ContainerHandlers) Stop(c *gin.Context) {
	h.lifecycle(c, h.svc.StopContainer)
}

// Restart reboots the container.
func (h *ContainerHandlers) Restart(c *gin.Context) {
	h.lifecycle(c, h.svc.RestartContainer)
}

// Delete removes the container remotely and locally. The local record
// survives a failed remote delete so the request can be retried.
func (h *ContainerHandlers) Delete(c *gin.Context) {
	h.lifecycle(c, h.svc.DeleteContainer)
}

func (h *ContainerHandlers) lifecycle(c *gin.Context, op func(ctx context.Context, vmid int, caller *models.User) error) {
	user, ok := resolveCaller(c, h.authSvc)
	if !ok {
		return
	}
	vmid, ok := vmidParam(c)
	if !ok {
		return
	}
	if err := op(c.Request.Context(), vmid, user); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusOK)
}

// Telemetry returns the reconciled telemetry view of one container.
func (h *ContainerHandlers) Telemetry(c *gin.Context) {
	user, ok := resolveCaller(c, h.authSvc)
	if !ok {
		return
	}
	vmid, ok := vmidParam(c)
	if !ok {
		return
	}
	telemetry, err := h.svc.Telemetry(c.Request.Context(), vmid, user)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, telemetry)
}

// ListAll returns the reconciled admin listing of every container on the
// node, merging local records with the hypervisor inventory.
func (h *ContainerHandlers) ListAll(c *gin.Context) {
	user, ok := resolveCaller(c, h.authSvc)
	if !ok {
		return
	}
	infos, err := h.svc.AllContainers(c.Request.Context(), user)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, infos)
}
