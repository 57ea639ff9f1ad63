package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/gantim/nvcloud-api-and-bot/pkg/database"
	"github.com/gantim/nvcloud-api-and-bot/pkg/database/models"
	"github.com/gantim/nvcloud-api-and-bot/pkg/database/repositories"
	"github.com/gantim/nvcloud-api-and-bot/pkg/proxmox"
)

// undefinedOwner is emitted in the admin listing when a VMID is known to the
// hypervisor but has no local record.
const undefinedOwner = "Undefined"

// ContainerService mediates all container lifecycle operations between the
// local record store and the hypervisor. It holds no per-request state;
// every operation opens its own transaction scopes and re-derives container
// status from the hypervisor on read.
type ContainerService struct {
	uow           *database.UnitOfWork
	provider      proxmox.Provider
	node          string
	templateVMIDs map[int]bool
	logger        *slog.Logger
}

func NewContainerService(uow *database.UnitOfWork, provider proxmox.Provider, node string, templateVMIDs []int, logger *slog.Logger) *ContainerService {
	templates := make(map[int]bool, len(templateVMIDs))
	for _, vmid := range templateVMIDs {
		templates[vmid] = true
	}
	return &ContainerService{
		uow:           uow,
		provider:      provider,
		node:          node,
		templateVMIDs: templates,
		logger:        logger,
	}
}

// CheckPermissions fetches the container record for a VMID and verifies the
// caller owns it or is an administrator. Every lifecycle operation goes
// through here first.
func (s *ContainerService) CheckPermissions(ctx context.Context, vmid int, caller *models.User) (*models.Container, error) {
	var container *models.Container
	err := s.uow.Do(ctx, func(scope *database.Scope) error {
		var err error
		container, err = scope.Containers.GetByVMID(ctx, vmid)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContainerNotFound
		}
		return nil, err
	}

	if container.OwnerID != caller.ID && !caller.IsAdmin {
		return nil, ErrNoPermissions
	}
	return container, nil
}

// CreateTicket persists an open provisioning ticket for the caller. No
// remote call is made.
func (s *ContainerService) CreateTicket(ctx context.Context, req CreateContainerRequest, caller *models.User) (*CreatedTicket, error) {
	ticket := &models.Ticket{
		Name:     req.HostName,
		CPUCores: req.CPUCores,
		RAMBytes: req.RAMBytes,
		ROMBytes: req.ROMBytes,
		OwnerID:  caller.ID,
	}
	err := s.uow.Do(ctx, func(scope *database.Scope) error {
		return scope.Tickets.Create(ctx, ticket)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("provisioning ticket created", "ticket", ticket.ID, "owner", caller.Username)
	return &CreatedTicket{ID: ticket.ID}, nil
}

// Tickets lists all provisioning tickets. Administrators only.
func (s *ContainerService) Tickets(ctx context.Context, caller *models.User) ([]models.Ticket, error) {
	if !caller.IsAdmin {
		return nil, ErrNoPermissions
	}
	var tickets []models.Ticket
	err := s.uow.Do(ctx, func(scope *database.Scope) error {
		var err error
		tickets, err = scope.Tickets.List(ctx, 0, 0)
		return err
	})
	return tickets, err
}

// DeleteTicket removes a ticket. The owner may delete it while it is still
// open; administrators may delete it in any state.
func (s *ContainerService) DeleteTicket(ctx context.Context, id uuid.UUID, caller *models.User) error {
	err := s.uow.Do(ctx, func(scope *database.Scope) error {
		ticket, err := scope.Tickets.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !caller.IsAdmin {
			if ticket.OwnerID != caller.ID {
				return ErrNoPermissions
			}
			if ticket.Closed {
				return ErrTicketClosed
			}
		}
		return scope.Tickets.Delete(ctx, id)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTicketNotFound
	}
	return err
}

// ConsumeTicket turns an open ticket into exactly one container. The ticket
// read, the remote create and the local writes share one transaction scope,
// so a failed local persist rolls the closed flag back. A crash after the
// remote create but before commit leaves an orphaned remote container; the
// admin listing surfaces the divergence at read time.
func (s *ContainerService) ConsumeTicket(ctx context.Context, id uuid.UUID) (*ContainerInfo, error) {
	var container *models.Container
	err := s.uow.Do(ctx, func(scope *database.Scope) error {
		ticket, err := scope.Tickets.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTicketNotFound
			}
			return err
		}
		if ticket.Closed {
			return ErrTicketClosed
		}

		created, err := s.provider.CreateContainer(ctx, s.node, proxmox.CreateSpec{
			Hostname: ticket.Name,
			CPUCores: ticket.CPUCores,
			RAMBytes: ticket.RAMBytes,
			ROMBytes: ticket.ROMBytes,
		})
		if err != nil {
			return err
		}

		container = newContainerRecord(created, ticket.OwnerID)
		if err := scope.Containers.Create(ctx, container); err != nil {
			return err
		}

		ticket.Closed = true
		return scope.Tickets.Update(ctx, ticket)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket consumed", "ticket", id, "vmid", container.VMID)
	return s.containerInfo(ctx, container)
}

// CreateContainer provisions a container directly for the caller, without a
// ticket. The remote create happens first; the local record is persisted in
// its own scope once the hypervisor has acknowledged.
func (s *ContainerService) CreateContainer(ctx context.Context, req CreateContainerRequest, caller *models.User) (*ContainerInfo, error) {
	created, err := s.provider.CreateContainer(ctx, s.node, proxmox.CreateSpec{
		Hostname: req.HostName,
		CPUCores: req.CPUCores,
		RAMBytes: req.RAMBytes,
		ROMBytes: req.ROMBytes,
	})
	if err != nil {
		return nil, err
	}

	container := newContainerRecord(created, caller.ID)
	err = s.uow.Do(ctx, func(scope *database.Scope) error {
		return scope.Containers.Create(ctx, container)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("container created", "vmid", container.VMID, "owner", caller.Username)
	return s.containerInfo(ctx, container)
}

func newContainerRecord(created *proxmox.CreatedContainer, ownerID uuid.UUID) *models.Container {
	return &models.Container{
		VMID:     created.VMID,
		Node:     created.Node,
		Name:     created.Hostname,
		Password: created.Password,
		Config: models.JSONMap{
			models.ConfigCPUCores: created.CPUCores,
			models.ConfigRAMBytes: created.RAMBytes,
			models.ConfigROMBytes: created.ROMBytes,
		},
		OwnerID: ownerID,
	}
}

func (s *ContainerService) containerInfo(ctx context.Context, container *models.Container) (*ContainerInfo, error) {
	status, err := s.provider.ContainerStatus(ctx, container.Node, container.VMID)
	if err != nil {
		return nil, err
	}
	return &ContainerInfo{
		ID:     container.VMID,
		Name:   container.Name,
		Status: status.Status,
	}, nil
}

// StartContainer starts the caller's container.
func (s *ContainerService) StartContainer(ctx context.Context, vmid int, caller *models.User) error {
	container, err := s.CheckPermissions(ctx, vmid, caller)
	if err != nil {
		return err
	}
	return s.provider.StartContainer(ctx, container.Node, container.VMID)
}

// StopContainer stops the caller's container.
func (s *ContainerService) StopContainer(ctx context.Context, vmid int, caller *models.User) error {
	container, err := s.CheckPermissions(ctx, vmid, caller)
	if err != nil {
		return err
	}
	return s.provider.StopContainer(ctx, container.Node, container.VMID)
}

// RestartContainer restarts the caller's container.
func (s *ContainerService) RestartContainer(ctx context.Context, vmid int, caller *models.User) error {
	container, err := s.CheckPermissions(ctx, vmid, caller)
	if err != nil {
		return err
	}
	return s.provider.RestartContainer(ctx, container.Node, container.VMID)
}

// DeleteContainer removes the container remotely and, only after the remote
// delete succeeded, removes the local record. A failed remote delete leaves
// the record in place so the caller can retry.
func (s *ContainerService) DeleteContainer(ctx context.Context, vmid int, caller *models.User) error {
	container, err := s.CheckPermissions(ctx, vmid, caller)
	if err != nil {
		return err
	}

	if err := s.provider.DeleteContainer(ctx, container.Node, container.VMID); err != nil {
		return err
	}

	err = s.uow.Do(ctx, func(scope *database.Scope) error {
		return scope.Containers.DeleteByVMID(ctx, vmid)
	})
	if err != nil {
		return err
	}

	s.logger.Info("container deleted", "vmid", vmid, "caller", caller.Username)
	return nil
}

// Telemetry reconciles the historical telemetry series with the current
// status into one view. The series and the status are fetched concurrently;
// the newest sample carrying a CPU reading wins, and samples without one are
// historical gaps, not zeros.
func (s *ContainerService) Telemetry(ctx context.Context, vmid int, caller *models.User) (*ContainerTelemetry, error) {
	container, err := s.CheckPermissions(ctx, vmid, caller)
	if err != nil {
		return nil, err
	}

	var (
		samples []proxmox.TelemetrySample
		status  *proxmox.ContainerStatus
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		samples, err = s.provider.ContainerTelemetry(groupCtx, container.Node, container.VMID, "hour")
		return err
	})
	group.Go(func() error {
		var err error
		status, err = s.provider.ContainerStatus(groupCtx, container.Node, container.VMID)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	sample := latestSampleWithCPU(samples)

	telemetry := &ContainerTelemetry{
		Container: ContainerInfo{
			ID:     container.VMID,
			Name:   status.Name,
			Status: status.Status,
		},
		User: AccessInfo{
			Username: "root",
			Password: container.Password,
		},
	}

	ramTotal := sampleInt(sample.MaxMem)
	romTotal := sampleInt(sample.MaxDisk)

	if status.Status == "stopped" {
		telemetry.CPU = CPUInfo{CPUCores: status.CPUs, FreeCPU: 1}
		telemetry.RAM = RAMInfo{RAMMiB: toMiB(ramTotal), FreeRAMMiB: toMiB(ramTotal)}
		telemetry.ROM = ROMInfo{ROMMiB: toMiB(romTotal), FreeROMMiB: toMiB(romTotal)}
		telemetry.IO = IOInfo{IOOperations: 0}
		telemetry.Network = NetworkInfo{
			IncomingTotalMiB: toMiB(status.NetIn),
			OutgoingTotalMiB: toMiB(status.NetOut),
		}
		return telemetry, nil
	}

	telemetry.CPU = CPUInfo{CPUCores: status.CPUs, FreeCPU: 1 - status.CPU}
	telemetry.RAM = RAMInfo{
		RAMMiB:     toMiB(ramTotal),
		FreeRAMMiB: toMiB(ramTotal - sampleInt(sample.Mem)),
	}
	telemetry.ROM = ROMInfo{
		ROMMiB:     toMiB(romTotal),
		FreeROMMiB: toMiB(romTotal - sampleInt(sample.Disk)),
	}
	telemetry.IO = IOInfo{IOOperations: sampleInt(sample.DiskRead) + sampleInt(sample.DiskWrite)}
	telemetry.Network = NetworkInfo{
		IncomingTotalMiB:   toMiB(status.NetIn),
		OutgoingTotalMiB:   toMiB(status.NetOut),
		IncomingCurrentKiB: toKiB(sampleInt(sample.NetIn)),
		OutgoingCurrentKiB: toKiB(sampleInt(sample.NetOut)),
	}
	return telemetry, nil
}

// Containers lists the caller's containers with live status. Statuses are
// fetched concurrently and joined positionally with the local records.
func (s *ContainerService) Containers(ctx context.Context, caller *models.User) ([]ContainerInfo, error) {
	var containers []models.Container
	err := s.uow.Do(ctx, func(scope *database.Scope) error {
		var err error
		containers, err = scope.Containers.Search(ctx, repositories.ContainerFilter{OwnerID: &caller.ID}, 0, 0)
		return err
	})
	if err != nil {
		return nil, err
	}

	statuses := make([]*proxmox.ContainerStatus, len(containers))
	group, groupCtx := errgroup.WithContext(ctx)
	for i := range containers {
		i := i
		group.Go(func() error {
			status, err := s.provider.ContainerStatus(groupCtx, containers[i].Node, containers[i].VMID)
			if err != nil {
				return err
			}
			statuses[i] = status
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	infos := make([]ContainerInfo, len(containers))
	for i, container := range containers {
		infos[i] = ContainerInfo{
			ID:     container.VMID,
			Name:   container.Name,
			Status: statuses[i].Status,
		}
	}
	return infos, nil
}

// AllContainers merges the local container index with the hypervisor's live
// inventory. The hypervisor wins on overlap; local-only records are assumed
// offline and emitted as stopped; template VMIDs are excluded; no VMID is
// emitted twice. Administrators only.
func (s *ContainerService) AllContainers(ctx context.Context, caller *models.User) ([]ContainerAdminInfo, error) {
	if !caller.IsAdmin {
		return nil, ErrNoPermissions
	}

	notTemplate := false
	var records []models.Container
	err := s.uow.Do(ctx, func(scope *database.Scope) error {
		var err error
		records, err = scope.Containers.Search(ctx, repositories.ContainerFilter{IsTemplate: &notTemplate}, 0, 0)
		return err
	})
	if err != nil {
		return nil, err
	}

	inventory, err := s.provider.AllContainers(ctx, s.node)
	if err != nil {
		return nil, err
	}

	recordsByVMID := make(map[int]*models.Container, len(records))
	for i := range records {
		recordsByVMID[records[i].VMID] = &records[i]
	}
	inventoryByVMID := make(map[int]proxmox.NodeContainer, len(inventory))
	for _, entry := range inventory {
		if entry.VMID != 0 {
			inventoryByVMID[entry.VMID] = entry
		}
	}

	infos := make([]ContainerAdminInfo, 0, len(inventoryByVMID)+len(recordsByVMID))

	for vmid, entry := range inventoryByVMID {
		if s.templateVMIDs[vmid] {
			continue
		}
		owner := undefinedOwner
		if record, ok := recordsByVMID[vmid]; ok && record.OwnerUsername() != "" {
			owner = record.OwnerUsername()
		}
		name := entry.Name
		if name == "" {
			name = undefinedOwner
		}
		status := entry.Status
		if status == "" {
			status = "stopped"
		}
		infos = append(infos, ContainerAdminInfo{
			ID:            vmid,
			Name:          name,
			OwnerUsername: owner,
			CPUCores:      entry.CPUs,
			RAMBytes:      entry.MaxMem,
			ROMBytes:      entry.MaxDisk,
			Status:        status,
		})
	}

	for vmid, record := range recordsByVMID {
		if _, ok := inventoryByVMID[vmid]; ok {
			continue
		}
		if s.templateVMIDs[vmid] {
			continue
		}
		infos = append(infos, ContainerAdminInfo{
			ID:            vmid,
			Name:          record.Name,
			OwnerUsername: record.OwnerUsername(),
			CPUCores:      int(record.CPUCores()),
			RAMBytes:      record.RAMBytes(),
			ROMBytes:      record.ROMBytes(),
			Status:        "stopped",
		})
	}

	return infos, nil
}

// latestSampleWithCPU scans the series from newest to oldest for a sample
// that carries a CPU reading. The zero sample stands in for "no recent
// data".
func latestSampleWithCPU(samples []proxmox.TelemetrySample) proxmox.TelemetrySample {
	for i := len(samples) - 1; i >= 0; i-- {
		if samples[i].CPU != nil {
			return samples[i]
		}
	}
	return proxmox.TelemetrySample{}
}

func sampleInt(v *float64) int64 {
	if v == nil {
		return 0
	}
	return int64(*v)
}

func toMiB(b int64) int64 { return b / (1024 * 1024) }
func toKiB(b int64) int64 { return b / 1024 }
