package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thereceipt/receipt-dispatcher/internal/config"
	"github.com/thereceipt/receipt-dispatcher/internal/printer"
)

func TestLoadRegistry_SeedsNetworkHosts(t *testing.T) {
	cfg := config.Default()
	cfg.Discovery.NetworkHosts = []config.NetworkHost{
		{Host: "10.0.0.5", Name: "Kitchen"},
		{Host: "10.0.0.6", Port: 9101},
	}

	reg, err := loadRegistry(cfg)
	require.NoError(t, err)

	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, "10.0.0.5:9100", all[0].Key())
	assert.Equal(t, "Kitchen", all[0].Name)
	assert.Equal(t, "10.0.0.6:9101", all[1].Key())
}

func TestLoadRegistry_InvalidHost(t *testing.T) {
	cfg := config.Default()
	cfg.Discovery.NetworkHosts = []config.NetworkHost{{Host: ""}}

	_, err := loadRegistry(cfg)
	assert.Error(t, err)
}

func TestEnumerators_Serial(t *testing.T) {
	cfg := config.Default()
	reg, err := loadRegistry(cfg)
	require.NoError(t, err)

	base := len(enumerators(cfg, reg))
	cfg.Discovery.Serial = true
	assert.Len(t, enumerators(cfg, reg), base+1)
}

func TestPrinterTable(t *testing.T) {
	out := printerTable([]printer.Descriptor{{
		ID:          "net_0",
		DisplayName: "Kitchen",
		Kind:        printer.KindReceipt,
		Connection:  printer.Connection{Kind: printer.ConnNetwork, Host: "10.0.0.5", Port: 9100},
	}})
	assert.Contains(t, out, "net_0")
	assert.Contains(t, out, "10.0.0.5:9100")

	assert.Contains(t, printerTable(nil), "no printers found")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatcher.yaml")

	cmd := buildCLI()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "init", path})
	require.NoError(t, cmd.Execute())

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12212, cfg.Server.Port)
	assert.NotEmpty(t, cfg.Registry.Path)

	// A second init without --force refuses to overwrite
	cmd = buildCLI()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"config", "init", path})
	assert.Error(t, cmd.Execute())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}
