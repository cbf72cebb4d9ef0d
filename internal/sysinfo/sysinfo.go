package sysinfo

import (
	"fmt"
	"os"
	"os/user"
)

// Actor identifies the host and user performing an installation.
type Actor struct {
	// Hostname of the machine running the tool.
	Hostname string `yaml:"hostname"`
	// Username of the operating system account.
	Username string `yaml:"username"`
}

// DetectActor gathers host and user information for the install audit trail.
func DetectActor() (*Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}

	return &Actor{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}
