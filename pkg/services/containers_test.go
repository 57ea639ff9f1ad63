package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gantim/nvcloud-api-and-bot/pkg/database"
	"github.com/gantim/nvcloud-api-and-bot/pkg/database/models"
	"github.com/gantim/nvcloud-api-and-bot/pkg/proxmox"
)

// fakeProvider is an in-memory Provider with scriptable failures.
type fakeProvider struct {
	mu sync.Mutex

	nextVMID  int
	createErr error
	deleteErr error
	actionErr error

	created   []proxmox.CreateSpec
	deleted   []int
	actions   []string
	statuses  map[int]proxmox.ContainerStatus
	samples   map[int][]proxmox.TelemetrySample
	inventory []proxmox.NodeContainer
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		nextVMID: proxmox.VMIDFloor + 1,
		statuses: make(map[int]proxmox.ContainerStatus),
		samples:  make(map[int][]proxmox.TelemetrySample),
	}
}

func (f *fakeProvider) CreateContainer(_ context.Context, node string, spec proxmox.CreateSpec) (*proxmox.CreatedContainer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	vmid := f.nextVMID
	f.nextVMID++
	f.created = append(f.created, spec)
	f.statuses[vmid] = proxmox.ContainerStatus{
		Status: "running",
		Name:   spec.Hostname,
		VMID:   vmid,
		CPUs:   spec.CPUCores,
	}
	return &proxmox.CreatedContainer{
		Node:     node,
		VMID:     vmid,
		Hostname: spec.Hostname,
		Username: "root",
		Password: "generated-password",
		CPUCores: spec.CPUCores,
		RAMBytes: spec.RAMBytes,
		ROMBytes: spec.ROMBytes,
	}, nil
}

func (f *fakeProvider) DeleteContainer(_ context.Context, _ string, vmid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, vmid)
	return nil
}

func (f *fakeProvider) StartContainer(_ context.Context, _ string, vmid int) error {
	return f.recordAction("start", vmid)
}

func (f *fakeProvider) StopContainer(_ context.Context, _ string, vmid int) error {
	return f.recordAction("stop", vmid)
}

func (f *fakeProvider) RestartContainer(_ context.Context, _ string, vmid int) error {
	return f.recordAction("reboot", vmid)
}

func (f *fakeProvider) recordAction(action string, vmid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.actionErr != nil {
		return f.actionErr
	}
	f.actions = append(f.actions, action)
	return nil
}

func (f *fakeProvider) ContainerStatus(_ context.Context, _ string, vmid int) (*proxmox.ContainerStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.statuses[vmid]
	if !ok {
		return nil, &proxmox.ProviderError{Op: "GET status", StatusCode: 500}
	}
	return &status, nil
}

func (f *fakeProvider) ContainerTelemetry(_ context.Context, _ string, vmid int, _ string) ([]proxmox.TelemetrySample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.samples[vmid], nil
}

func (f *fakeProvider) VMIDs(_ context.Context, _ string) (map[int]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	used := make(map[int]bool, len(f.inventory))
	for _, entry := range f.inventory {
		used[entry.VMID] = true
	}
	return used, nil
}

func (f *fakeProvider) AllContainers(_ context.Context, _ string) ([]proxmox.NodeContainer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inventory, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupService(t *testing.T) (*ContainerService, *fakeProvider, *database.UnitOfWork) {
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	db := &database.DB{DB: gormDB}
	require.NoError(t, db.AutoMigrate())

	uow := database.NewUnitOfWork(db)
	provider := newFakeProvider()
	svc := NewContainerService(uow, provider, "nvcloud", []int{proxmox.VMIDFloor}, testLogger())
	return svc, provider, uow
}

func createAccount(t *testing.T, uow *database.UnitOfWork, username string, admin bool) *models.User {
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		IsAdmin:  admin,
	}
	require.NoError(t, user.SetPassword("test-password-1"))
	require.NoError(t, uow.Do(context.Background(), func(scope *database.Scope) error {
		return scope.Users.Create(context.Background(), user)
	}))
	return user
}

func createRecord(t *testing.T, uow *database.UnitOfWork, container *models.Container) {
	require.NoError(t, uow.Do(context.Background(), func(scope *database.Scope) error {
		return scope.Containers.Create(context.Background(), container)
	}))
}

func floatPtr(v float64) *float64 { return &v }

func TestConsumeTicketExactlyOnce(t *testing.T) {
	svc, provider, uow := setupService(t)
	ctx := context.Background()
	owner := createAccount(t, uow, "alice", false)

	ticket, err := svc.CreateTicket(ctx, CreateContainerRequest{
		HostName: "web-1",
		CPUCores: 2,
		RAMBytes: 2147483648,
		ROMBytes: 10737418240,
	}, owner)
	require.NoError(t, err)

	info, err := svc.ConsumeTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "web-1", info.Name)
	assert.Equal(t, "running", info.Status)
	require.Len(t, provider.created, 1)
	assert.Equal(t, 2, provider.created[0].CPUCores)

	// The record was persisted and the ticket closed atomically.
	err = uow.Do(ctx, func(scope *database.Scope) error {
		container, err := scope.Containers.GetByVMID(ctx, info.ID)
		require.NoError(t, err)
		assert.Equal(t, owner.ID, container.OwnerID)
		assert.Equal(t, "generated-password", container.Password)

		got, err := scope.Tickets.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.True(t, got.Closed)
		return nil
	})
	require.NoError(t, err)

	// Second consumption conflicts and provisions nothing.
	_, err = svc.ConsumeTicket(ctx, ticket.ID)
	assert.ErrorIs(t, err, ErrTicketClosed)
	assert.Len(t, provider.created, 1)
}

func TestConsumeTicketUnknown(t *testing.T) {
	svc, _, uow := setupService(t)
	createAccount(t, uow, "alice", false)

	_, err := svc.ConsumeTicket(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestConsumeTicketRollsBackOnProviderFailure(t *testing.T) {
	svc, provider, uow := setupService(t)
	ctx := context.Background()
	owner := createAccount(t, uow, "alice", false)

	ticket, err := svc.CreateTicket(ctx, CreateContainerRequest{
		HostName: "web-1",
		CPUCores: 2,
		RAMBytes: 1 << 31,
		ROMBytes: 10 << 30,
	}, owner)
	require.NoError(t, err)

	provider.createErr = &proxmox.ProviderError{Op: "POST lxc", StatusCode: 500}
	_, err = svc.ConsumeTicket(ctx, ticket.ID)
	require.Error(t, err)

	// The ticket stays open and consumable.
	err = uow.Do(ctx, func(scope *database.Scope) error {
		got, err := scope.Tickets.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.False(t, got.Closed)
		return nil
	})
	require.NoError(t, err)

	provider.createErr = nil
	_, err = svc.ConsumeTicket(ctx, ticket.ID)
	require.NoError(t, err)
}

func TestCheckPermissions(t *testing.T) {
	svc, provider, uow := setupService(t)
	ctx := context.Background()
	owner := createAccount(t, uow, "alice", false)
	stranger := createAccount(t, uow, "bob", false)
	admin := createAccount(t, uow, "root", true)

	createRecord(t, uow, &models.Container{
		VMID:    101,
		Node:    "nvcloud",
		Name:    "web-1",
		OwnerID: owner.ID,
	})
	provider.statuses[101] = proxmox.ContainerStatus{Status: "stopped", VMID: 101}

	t.Run("OwnerAllowed", func(t *testing.T) {
		require.NoError(t, svc.StartContainer(ctx, 101, owner))
		assert.Equal(t, []string{"start"}, provider.actions)
	})

	t.Run("StrangerDenied", func(t *testing.T) {
		assert.ErrorIs(t, svc.StopContainer(ctx, 101, stranger), ErrNoPermissions)
		assert.NotContains(t, provider.actions, "stop")
	})

	t.Run("AdminAllowed", func(t *testing.T) {
		require.NoError(t, svc.RestartContainer(ctx, 101, admin))
		assert.Contains(t, provider.actions, "reboot")
	})

	t.Run("UnknownContainer", func(t *testing.T) {
		assert.ErrorIs(t, svc.StartContainer(ctx, 999, owner), ErrContainerNotFound)
	})
}

func TestDeleteContainerKeepsRecordOnRemoteFailure(t *testing.T) {
	svc, provider, uow := setupService(t)
	ctx := context.Background()
	owner := createAccount(t, uow, "alice", false)

	createRecord(t, uow, &models.Container{
		VMID:    101,
		Node:    "nvcloud",
		Name:    "web-1",
		OwnerID: owner.ID,
	})

	provider.deleteErr = &proxmox.ProviderError{Op: "DELETE lxc", StatusCode: 500}
	require.Error(t, svc.DeleteContainer(ctx, 101, owner))

	// Record survives for a retry.
	err := uow.Do(ctx, func(scope *database.Scope) error {
		_, err := scope.Containers.GetByVMID(ctx, 101)
		return err
	})
	require.NoError(t, err)

	provider.deleteErr = nil
	require.NoError(t, svc.DeleteContainer(ctx, 101, owner))
	assert.Equal(t, []int{101}, provider.deleted)

	err = uow.Do(ctx, func(scope *database.Scope) error {
		_, err := scope.Containers.GetByVMID(ctx, 101)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestTelemetryStopped(t *testing.T) {
	svc, provider, uow := setupService(t)
	ctx := context.Background()
	owner := createAccount(t, uow, "alice", false)

	createRecord(t, uow, &models.Container{
		VMID:     101,
		Node:     "nvcloud",
		Name:     "web-1",
		Password: "root-password",
		OwnerID:  owner.ID,
	})
	provider.statuses[101] = proxmox.ContainerStatus{
		Status: "stopped",
		Name:   "web-1",
		VMID:   101,
		CPUs:   2,
		NetIn:  5 << 20,
		NetOut: 2 << 20,
	}
	provider.samples[101] = []proxmox.TelemetrySample{
		{
			Time:    1000,
			CPU:     floatPtr(0.4),
			Mem:     floatPtr(1 << 30),
			MaxMem:  floatPtr(2 << 30),
			Disk:    floatPtr(3 << 30),
			MaxDisk: floatPtr(10 << 30),
		},
	}

	telemetry, err := svc.Telemetry(ctx, 101, owner)
	require.NoError(t, err)

	assert.Equal(t, "stopped", telemetry.Container.Status)
	assert.Equal(t, "root", telemetry.User.Username)
	assert.Equal(t, "root-password", telemetry.User.Password)

	// A stopped container is fully idle regardless of historical samples.
	assert.Equal(t, 2, telemetry.CPU.CPUCores)
	assert.Equal(t, float64(1), telemetry.CPU.FreeCPU)
	assert.Equal(t, int64(2048), telemetry.RAM.RAMMiB)
	assert.Equal(t, int64(2048), telemetry.RAM.FreeRAMMiB)
	assert.Equal(t, int64(10240), telemetry.ROM.ROMMiB)
	assert.Equal(t, int64(10240), telemetry.ROM.FreeROMMiB)
	assert.Equal(t, int64(0), telemetry.IO.IOOperations)
	assert.Equal(t, int64(5), telemetry.Network.IncomingTotalMiB)
	assert.Equal(t, int64(2), telemetry.Network.OutgoingTotalMiB)
	assert.Equal(t, int64(0), telemetry.Network.IncomingCurrentKiB)
	assert.Equal(t, int64(0), telemetry.Network.OutgoingCurrentKiB)
}

func TestTelemetryRunning(t *testing.T) {
	svc, provider, uow := setupService(t)
	ctx := context.Background()
	owner := createAccount(t, uow, "alice", false)

	createRecord(t, uow, &models.Container{
		VMID:     101,
		Node:     "nvcloud",
		Name:     "web-1",
		Password: "root-password",
		OwnerID:  owner.ID,
	})
	provider.statuses[101] = proxmox.ContainerStatus{
		Status: "running",
		Name:   "web-1",
		VMID:   101,
		CPUs:   4,
		CPU:    0.25,
		NetIn:  100 << 20,
		NetOut: 50 << 20,
	}
	provider.samples[101] = []proxmox.TelemetrySample{
		// Newest sample carries no CPU reading and must be skipped.
		{
			Time:      1060,
			CPU:       floatPtr(0.3),
			Mem:       floatPtr(1 << 30),
			MaxMem:    floatPtr(4 << 30),
			Disk:      floatPtr(6 << 30),
			MaxDisk:   floatPtr(20 << 30),
			DiskRead:  floatPtr(1000),
			DiskWrite: floatPtr(500),
			NetIn:     floatPtr(8192),
			NetOut:    floatPtr(4096),
		},
		{Time: 1120},
	}

	telemetry, err := svc.Telemetry(ctx, 101, owner)
	require.NoError(t, err)

	assert.Equal(t, 4, telemetry.CPU.CPUCores)
	assert.InDelta(t, 0.75, telemetry.CPU.FreeCPU, 1e-9)
	assert.Equal(t, int64(4096), telemetry.RAM.RAMMiB)
	assert.Equal(t, int64(3072), telemetry.RAM.FreeRAMMiB)
	assert.Equal(t, int64(20480), telemetry.ROM.ROMMiB)
	assert.Equal(t, int64(14336), telemetry.ROM.FreeROMMiB)
	assert.Equal(t, int64(1500), telemetry.IO.IOOperations)
	assert.Equal(t, int64(100), telemetry.Network.IncomingTotalMiB)
	assert.Equal(t, int64(50), telemetry.Network.OutgoingTotalMiB)
	assert.Equal(t, int64(8), telemetry.Network.IncomingCurrentKiB)
	assert.Equal(t, int64(4), telemetry.Network.OutgoingCurrentKiB)
}

func TestContainersListsOwnedWithLiveStatus(t *testing.T) {
	svc, provider, uow := setupService(t)
	ctx := context.Background()
	owner := createAccount(t, uow, "alice", false)
	other := createAccount(t, uow, "bob", false)

	createRecord(t, uow, &models.Container{VMID: 101, Node: "nvcloud", Name: "web-1", OwnerID: owner.ID})
	createRecord(t, uow, &models.Container{VMID: 102, Node: "nvcloud", Name: "web-2", OwnerID: owner.ID})
	createRecord(t, uow, &models.Container{VMID: 103, Node: "nvcloud", Name: "db-1", OwnerID: other.ID})
	provider.statuses[101] = proxmox.ContainerStatus{Status: "running", VMID: 101}
	provider.statuses[102] = proxmox.ContainerStatus{Status: "stopped", VMID: 102}

	infos, err := svc.Containers(ctx, owner)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	byVMID := map[int]ContainerInfo{}
	for _, info := range infos {
		byVMID[info.ID] = info
	}
	assert.Equal(t, "running", byVMID[101].Status)
	assert.Equal(t, "stopped", byVMID[102].Status)
}

func TestAllContainersReconciliation(t *testing.T) {
	svc, provider, uow := setupService(t)
	ctx := context.Background()
	admin := createAccount(t, uow, "root", true)
	owner := createAccount(t, uow, "alice", false)

	t.Run("AdminOnly", func(t *testing.T) {
		_, err := svc.AllContainers(ctx, owner)
		assert.ErrorIs(t, err, ErrNoPermissions)
	})

	// 101: known both sides. 102: local-only. 150: hypervisor-only.
	// 100: template VMID, present remotely, must not appear.
	createRecord(t, uow, &models.Container{
		VMID: 101, Node: "nvcloud", Name: "web-1", OwnerID: owner.ID,
	})
	createRecord(t, uow, &models.Container{
		VMID: 102, Node: "nvcloud", Name: "web-2", OwnerID: owner.ID,
		Config: models.JSONMap{
			models.ConfigCPUCores: int64(2),
			models.ConfigRAMBytes: int64(2 << 30),
			models.ConfigROMBytes: int64(10 << 30),
		},
	})
	provider.inventory = []proxmox.NodeContainer{
		{VMID: 100, Name: "base-template", Status: "stopped"},
		{VMID: 101, Name: "web-1", Status: "running", CPUs: 2, MaxMem: 4 << 30, MaxDisk: 20 << 30},
		{VMID: 150, Name: "stray", Status: "running", CPUs: 1, MaxMem: 1 << 30, MaxDisk: 5 << 30},
		{Name: "malformed-entry"},
	}

	infos, err := svc.AllContainers(ctx, admin)
	require.NoError(t, err)
	require.Len(t, infos, 3)

	byVMID := map[int]ContainerAdminInfo{}
	for _, info := range infos {
		_, seen := byVMID[info.ID]
		assert.False(t, seen, "VMID %d emitted twice", info.ID)
		byVMID[info.ID] = info
	}

	// Hypervisor wins on overlap; ownership comes from the local record.
	assert.Equal(t, "running", byVMID[101].Status)
	assert.Equal(t, "alice", byVMID[101].OwnerUsername)
	assert.Equal(t, int64(4<<30), byVMID[101].RAMBytes)

	// Local-only records are assumed offline.
	assert.Equal(t, "stopped", byVMID[102].Status)
	assert.Equal(t, "alice", byVMID[102].OwnerUsername)
	assert.Equal(t, 2, byVMID[102].CPUCores)
	assert.Equal(t, int64(2<<30), byVMID[102].RAMBytes)

	// Hypervisor-only entries surface with an undefined owner.
	assert.Equal(t, "Undefined", byVMID[150].OwnerUsername)
	assert.Equal(t, "running", byVMID[150].Status)

	_, hasTemplate := byVMID[100]
	assert.False(t, hasTemplate)
}

func TestTicketLifecycle(t *testing.T) {
	svc, _, uow := setupService(t)
	ctx := context.Background()
	owner := createAccount(t, uow, "alice", false)
	stranger := createAccount(t, uow, "bob", false)
	admin := createAccount(t, uow, "root", true)

	ticket, err := svc.CreateTicket(ctx, CreateContainerRequest{
		HostName: "web-1",
		CPUCores: 1,
		RAMBytes: 1 << 30,
		ROMBytes: 5 << 30,
	}, owner)
	require.NoError(t, err)

	t.Run("ListAdminOnly", func(t *testing.T) {
		_, err := svc.Tickets(ctx, owner)
		assert.ErrorIs(t, err, ErrNoPermissions)

		tickets, err := svc.Tickets(ctx, admin)
		require.NoError(t, err)
		require.Len(t, tickets, 1)
		assert.Equal(t, "alice", tickets[0].OwnerUsername())
	})

	t.Run("StrangerCannotDelete", func(t *testing.T) {
		assert.ErrorIs(t, svc.DeleteTicket(ctx, ticket.ID, stranger), ErrNoPermissions)
	})

	t.Run("OwnerCannotDeleteClosed", func(t *testing.T) {
		err := uow.Do(ctx, func(scope *database.Scope) error {
			got, err := scope.Tickets.GetByID(ctx, ticket.ID)
			require.NoError(t, err)
			got.Closed = true
			return scope.Tickets.Update(ctx, got)
		})
		require.NoError(t, err)

		assert.ErrorIs(t, svc.DeleteTicket(ctx, ticket.ID, owner), ErrTicketClosed)
	})

	t.Run("AdminDeletesClosed", func(t *testing.T) {
		require.NoError(t, svc.DeleteTicket(ctx, ticket.ID, admin))
		assert.ErrorIs(t, svc.DeleteTicket(ctx, ticket.ID, admin), ErrTicketNotFound)
	})
}

func TestCreateContainerDirect(t *testing.T) {
	svc, provider, uow := setupService(t)
	ctx := context.Background()
	owner := createAccount(t, uow, "alice", false)

	info, err := svc.CreateContainer(ctx, CreateContainerRequest{
		HostName: "web-1",
		CPUCores: 2,
		RAMBytes: 2 << 30,
		ROMBytes: 10 << 30,
	}, owner)
	require.NoError(t, err)
	assert.Equal(t, "web-1", info.Name)
	require.Len(t, provider.created, 1)

	err = uow.Do(ctx, func(scope *database.Scope) error {
		container, err := scope.Containers.GetByVMID(ctx, info.ID)
		require.NoError(t, err)
		assert.Equal(t, owner.ID, container.OwnerID)
		assert.Equal(t, int64(2), container.CPUCores())
		return nil
	})
	require.NoError(t, err)

	var boom = errors.New("hypervisor offline")
	provider.createErr = boom
	_, err = svc.CreateContainer(ctx, CreateContainerRequest{
		HostName: "web-2",
		CPUCores: 1,
		RAMBytes: 1 << 30,
		ROMBytes: 5 << 30,
	}, owner)
	assert.ErrorIs(t, err, boom)
}
