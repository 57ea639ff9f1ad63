package proxmox

// CreateSpec describes the container a caller wants provisioned. It carries
// no VMID; the provider allocates one.
type CreateSpec struct {
	Hostname string
	CPUCores int
	RAMBytes int64
	ROMBytes int64
	Network  *NetworkConfig
}

// NetworkConfig overrides the default network assignment derived from the
// allocated VMID.
type NetworkConfig struct {
	Bridge  string
	IP      string
	Gateway string
	DHCP    bool
}

// CreatedContainer reports the outcome of a successful remote create,
// including the generated access credentials.
type CreatedContainer struct {
	Node     string
	VMID     int
	Hostname string
	Username string
	Password string

	CPUCores int
	RAMBytes int64
	ROMBytes int64
}

// ContainerStatus is the point-in-time view returned by the status/current
// endpoint.
type ContainerStatus struct {
	Status    string  `json:"status"`
	Name      string  `json:"name"`
	VMID      int     `json:"vmid"`
	CPUs      int     `json:"cpus"`
	CPU       float64 `json:"cpu"`
	Mem       int64   `json:"mem"`
	MaxMem    int64   `json:"maxmem"`
	Disk      int64   `json:"disk"`
	MaxDisk   int64   `json:"maxdisk"`
	DiskRead  int64   `json:"diskread"`
	DiskWrite int64   `json:"diskwrite"`
	NetIn     int64   `json:"netin"`
	NetOut    int64   `json:"netout"`
	Uptime    int64   `json:"uptime"`
}

// TelemetrySample is one time-stamped measurement from the telemetry series.
// Counters are pointers because historical samples may carry no data at all;
// a sample without CPU is a gap and must be skipped, not read as zero.
type TelemetrySample struct {
	Time      int64    `json:"time"`
	CPU       *float64 `json:"cpu,omitempty"`
	Mem       *float64 `json:"mem,omitempty"`
	MaxMem    *float64 `json:"maxmem,omitempty"`
	Disk      *float64 `json:"disk,omitempty"`
	MaxDisk   *float64 `json:"maxdisk,omitempty"`
	DiskRead  *float64 `json:"diskread,omitempty"`
	DiskWrite *float64 `json:"diskwrite,omitempty"`
	NetIn     *float64 `json:"netin,omitempty"`
	NetOut    *float64 `json:"netout,omitempty"`
}

// NodeContainer is one entry of the node-wide inventory listing. Entries
// without a VMID are malformed and skipped by callers.
type NodeContainer struct {
	VMID    int    `json:"vmid"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	CPUs    int    `json:"cpus"`
	MaxMem  int64  `json:"maxmem"`
	MaxDisk int64  `json:"maxdisk"`
}
