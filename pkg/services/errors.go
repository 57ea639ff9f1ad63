package services

import "errors"

var (
	// ErrContainerNotFound is returned when no local record exists for a VMID
	ErrContainerNotFound = errors.New("container not found")
	// ErrTicketNotFound is returned when a provisioning ticket does not exist
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrTicketClosed is returned when consuming a ticket that was already consumed
	ErrTicketClosed = errors.New("ticket already closed")
	// ErrNoPermissions is returned when the caller neither owns the resource nor is an administrator
	ErrNoPermissions = errors.New("no permissions for action")
)
