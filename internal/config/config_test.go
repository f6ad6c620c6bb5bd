package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8086, cfg.Server.Port)
	assert.Equal(t, "usa-compliance", cfg.Compliance.DefaultProvider)
	assert.Equal(t, 5*time.Second, cfg.Compliance.LookupTimeout)
	assert.Equal(t, 720*time.Hour, cfg.Cache.LoadWindow)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, "banking.compliance.filings.", cfg.Kafka.FilingTopicPrefix)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("COMPLIANCE_SERVER_PORT", "9090")
	t.Setenv("COMPLIANCE_COMPLIANCE_DEFAULT_PROVIDER", "canada-compliance")
	t.Setenv("COMPLIANCE_COMPLIANCE_FILING_TIMEOUT", "45s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "canada-compliance", cfg.Compliance.DefaultProvider)
	assert.Equal(t, 45*time.Second, cfg.Compliance.FilingTimeout)
}

func TestProviderConfig(t *testing.T) {
	c := ComplianceConfig{
		Environment:     "production",
		InstitutionName: "First Bank",
		Providers: map[string]map[string]string{
			"canada-compliance": {"environment": "sandbox", "api_key": "k"},
		},
	}

	ca := c.ProviderConfig("Canada-Compliance")
	assert.Equal(t, "sandbox", ca["environment"])
	assert.Equal(t, "First Bank", ca["institution_name"])
	assert.Equal(t, "k", ca["api_key"])

	us := c.ProviderConfig("usa-compliance")
	assert.Equal(t, map[string]string{"environment": "production", "institution_name": "First Bank"}, us)
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "compliance", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=compliance sslmode=disable", c.DSN())
}
