package services

import "github.com/google/uuid"

// CreateContainerRequest carries a user-submitted resource request, used
// both for direct creation and for tickets.
type CreateContainerRequest struct {
	HostName string `json:"host_name" binding:"required"`
	CPUCores int    `json:"cpu_cores" binding:"required,gt=0"`
	RAMBytes int64  `json:"ram_bytes" binding:"required,gt=0"`
	ROMBytes int64  `json:"rom_bytes" binding:"required,gt=0"`
}

// CreatedTicket is the handle returned after persisting a provisioning
// ticket.
type CreatedTicket struct {
	ID uuid.UUID `json:"id"`
}

// ContainerInfo is the per-container summary for owner listings.
type ContainerInfo struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// ContainerAdminInfo is one entry of the reconciled admin listing. Resource
// figures come from whichever source emitted the entry, in raw bytes.
type ContainerAdminInfo struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	OwnerUsername string `json:"owner_username"`
	CPUCores      int    `json:"cpu_cores"`
	RAMBytes      int64  `json:"ram_bytes"`
	ROMBytes      int64  `json:"rom_bytes"`
	Status        string `json:"status"`
}

// AccessInfo carries the container login credentials.
type AccessInfo struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CPUInfo reports core count and the free fraction of CPU capacity (0..1).
type CPUInfo struct {
	CPUCores int     `json:"cpu_cores"`
	FreeCPU  float64 `json:"free_cpu"`
}

// RAMInfo reports memory totals in whole mebibytes (floor division).
type RAMInfo struct {
	RAMMiB     int64 `json:"ram_mib"`
	FreeRAMMiB int64 `json:"free_ram_mib"`
}

// ROMInfo reports disk totals in whole mebibytes (floor division).
type ROMInfo struct {
	ROMMiB     int64 `json:"rom_mib"`
	FreeROMMiB int64 `json:"free_rom_mib"`
}

// IOInfo reports the summed disk read/write counter of the newest sample.
type IOInfo struct {
	IOOperations int64 `json:"io_operations"`
}

// NetworkInfo reports current traffic in kibibytes and cumulative totals in
// mebibytes, both floor-divided.
type NetworkInfo struct {
	IncomingTotalMiB   int64 `json:"incoming_total_mib"`
	OutgoingTotalMiB   int64 `json:"outgoing_total_mib"`
	IncomingCurrentKiB int64 `json:"incoming_current_kib"`
	OutgoingCurrentKiB int64 `json:"outgoing_current_kib"`
}

// ContainerTelemetry is the reconciled telemetry view of one container.
type ContainerTelemetry struct {
	Container ContainerInfo `json:"container"`
	User      AccessInfo    `json:"user"`
	CPU       CPUInfo       `json:"cpu"`
	RAM       RAMInfo       `json:"ram"`
	ROM       ROMInfo       `json:"rom"`
	IO        IOInfo        `json:"io"`
	Network   NetworkInfo   `json:"network"`
}
