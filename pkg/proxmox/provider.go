package proxmox

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
)

// Provider is the capability interface over the remote hypervisor. One
// implementation talks to the real cluster; tests substitute fakes.
type Provider interface {
	CreateContainer(ctx context.Context, node string, spec CreateSpec) (*CreatedContainer, error)
	DeleteContainer(ctx context.Context, node string, vmid int) error
	StartContainer(ctx context.Context, node string, vmid int) error
	StopContainer(ctx context.Context, node string, vmid int) error
	RestartContainer(ctx context.Context, node string, vmid int) error
	ContainerStatus(ctx context.Context, node string, vmid int) (*ContainerStatus, error)
	ContainerTelemetry(ctx context.Context, node string, vmid int, timeframe string) ([]TelemetrySample, error)
	VMIDs(ctx context.Context, node string) (map[int]bool, error)
	AllContainers(ctx context.Context, node string) ([]NodeContainer, error)
}

// VMID allocation range. The floor is scanned upward; allocation fails past
// the ceiling.
const (
	VMIDFloor   = 100
	VMIDCeiling = 199
)

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*"

const passwordLength = 16

// CreateContainer allocates the lowest free VMID, generates root
// credentials and submits the create request. The list-then-create sequence
// is a known race between concurrent callers; the hypervisor rejects the
// loser with a conflict on the duplicate VMID.
func (c *Client) CreateContainer(ctx context.Context, node string, spec CreateSpec) (*CreatedContainer, error) {
	used, err := c.VMIDs(ctx, node)
	if err != nil {
		return nil, err
	}

	vmid, err := nextFreeVMID(used)
	if err != nil {
		return nil, err
	}

	password, err := generatePassword()
	if err != nil {
		return nil, fmt.Errorf("failed to generate container password: %w", err)
	}

	network := spec.Network
	if network == nil {
		network = &NetworkConfig{
			Bridge:  "vmbr0",
			IP:      fmt.Sprintf("10.0.0.%d/24", vmid),
			Gateway: "10.0.0.1",
		}
	}
	net0 := fmt.Sprintf("name=eth0,bridge=%s", network.Bridge)
	if network.DHCP {
		net0 += ",ip=dhcp"
	} else {
		net0 += fmt.Sprintf(",ip=%s,gw=%s", network.IP, network.Gateway)
	}

	body := map[string]interface{}{
		"vmid":         vmid,
		"hostname":     spec.Hostname,
		"ostemplate":   c.osTemplate,
		"storage":      c.storage,
		"password":     password,
		"unprivileged": 1,
		"start":        1,
		"net0":         net0,
		"features":     "nesting=1",
		"cores":        spec.CPUCores,
		"memory":       spec.RAMBytes / (1024 * 1024),
		"rootfs":       fmt.Sprintf("%s:%d", c.storage, spec.ROMBytes/(1024*1024*1024)),
	}

	path := fmt.Sprintf("/api2/json/nodes/%s/lxc", node)
	if err := c.do(ctx, "POST", path, nil, body, nil); err != nil {
		return nil, err
	}

	return &CreatedContainer{
		Node:     node,
		VMID:     vmid,
		Hostname: spec.Hostname,
		Username: "root",
		Password: password,
		CPUCores: spec.CPUCores,
		RAMBytes: spec.RAMBytes,
		ROMBytes: spec.ROMBytes,
	}, nil
}

func (c *Client) DeleteContainer(ctx context.Context, node string, vmid int) error {
	path := fmt.Sprintf("/api2/json/nodes/%s/lxc/%d", node, vmid)
	return c.do(ctx, "DELETE", path, nil, nil, nil)
}

func (c *Client) StartContainer(ctx context.Context, node string, vmid int) error {
	return c.containerAction(ctx, node, vmid, "start")
}

func (c *Client) StopContainer(ctx context.Context, node string, vmid int) error {
	return c.containerAction(ctx, node, vmid, "stop")
}

func (c *Client) RestartContainer(ctx context.Context, node string, vmid int) error {
	return c.containerAction(ctx, node, vmid, "reboot")
}

func (c *Client) containerAction(ctx context.Context, node string, vmid int, action string) error {
	path := fmt.Sprintf("/api2/json/nodes/%s/lxc/%d/status/%s", node, vmid, action)
	return c.do(ctx, "POST", path, nil, nil, nil)
}

func (c *Client) ContainerStatus(ctx context.Context, node string, vmid int) (*ContainerStatus, error) {
	path := fmt.Sprintf("/api2/json/nodes/%s/lxc/%d/status/current", node, vmid)
	var status ContainerStatus
	if err := c.do(ctx, "GET", path, nil, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) ContainerTelemetry(ctx context.Context, node string, vmid int, timeframe string) ([]TelemetrySample, error) {
	if timeframe == "" {
		timeframe = "hour"
	}
	path := fmt.Sprintf("/api2/json/nodes/%s/lxc/%d/rrddata", node, vmid)
	query := url.Values{
		"timeframe": {timeframe},
		"cf":        {"AVERAGE"},
	}
	var samples []TelemetrySample
	if err := c.do(ctx, "GET", path, query, nil, &samples); err != nil {
		return nil, err
	}
	return samples, nil
}

func (c *Client) AllContainers(ctx context.Context, node string) ([]NodeContainer, error) {
	path := fmt.Sprintf("/api2/json/nodes/%s/lxc", node)
	var containers []NodeContainer
	if err := c.do(ctx, "GET", path, nil, nil, &containers); err != nil {
		return nil, err
	}
	return containers, nil
}

func (c *Client) VMIDs(ctx context.Context, node string) (map[int]bool, error) {
	containers, err := c.AllContainers(ctx, node)
	if err != nil {
		return nil, err
	}
	used := make(map[int]bool, len(containers))
	for _, container := range containers {
		if container.VMID != 0 {
			used[container.VMID] = true
		}
	}
	return used, nil
}

func nextFreeVMID(used map[int]bool) (int, error) {
	for vmid := VMIDFloor; vmid <= VMIDCeiling; vmid++ {
		if !used[vmid] {
			return vmid, nil
		}
	}
	return 0, ErrVMIDExhausted
}

func generatePassword() (string, error) {
	password := make([]byte, passwordLength)
	alphabetLen := big.NewInt(int64(len(passwordAlphabet)))
	for i := range password {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		password[i] = passwordAlphabet[n.Int64()]
	}
	return string(password), nil
}
