package main

import (
	"flag"
	"fmt"
	"hash/fnv"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/meshnode/meshnode/internal/config"
	"github.com/meshnode/meshnode/internal/logger"
	"github.com/meshnode/meshnode/internal/node"
	"github.com/meshnode/meshnode/internal/pixeldriver"
	"github.com/meshnode/meshnode/internal/storage"
)

// deriveNodeID hashes the interface's hardware address into the 64-bit
// NodeId used for election priority and frame attribution: stable across
// reboots as long as the NIC doesn't change, with no coordination needed
// between nodes.
func deriveNodeID(iface string) (uint64, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return 0, fmt.Errorf("lookup interface %s: %w", iface, err)
	}
	if len(ifi.HardwareAddr) == 0 {
		return 0, fmt.Errorf("interface %s has no hardware address", iface)
	}
	h := fnv.New64a()
	h.Write(ifi.HardwareAddr)
	return h.Sum64(), nil
}

func main() {
	configPath := flag.String("config", "/etc/meshnode/config.yaml", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "meshnode: %v\n", err)
		os.Exit(1)
	}

	self, err := deriveNodeID(cfg.Interface)
	if err != nil {
		fmt.Fprintf(os.Stderr, "meshnode: %v\n", err)
		os.Exit(1)
	}
	logger.Infof("[meshnode] node id %d on interface %s", self, cfg.Interface)

	fs := storage.NewOSStorage(cfg.StorageDir)

	// The physical strip driver (bit-banging a data line) is out of
	// scope for this module; Null lets the coordination plane
	// run headless until a real collaborator is wired in by the caller.
	n := node.New(self, cfg, fs, pixeldriver.Null{})
	if err := n.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "meshnode: start: %v\n", err)
		os.Exit(1)
	}
	logger.Info("[meshnode] started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("[meshnode] shutting down")
	n.Stop()
	logger.Sync()
}
