package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.APIPort != 5001 {
		t.Errorf("expected default API port 5001, got %d", cfg.APIPort)
	}
	if cfg.MCPPort != 8767 {
		t.Errorf("expected default MCP port 8767, got %d", cfg.MCPPort)
	}
	if cfg.Neo4jURI != "bolt://localhost:7687" {
		t.Errorf("unexpected default Neo4j URI %s", cfg.Neo4jURI)
	}
	if cfg.FuzzyTitleThreshold != 90 {
		t.Errorf("expected fuzzy threshold 90, got %d", cfg.FuzzyTitleThreshold)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("GRAPHRAG_PORT_API", "6001")
	t.Setenv("NEO4J_PASSWORD", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIPort != 6001 {
		t.Errorf("expected API port 6001, got %d", cfg.APIPort)
	}
	if cfg.Neo4jPassword != "secret" {
		t.Errorf("expected overridden password, got %s", cfg.Neo4jPassword)
	}
}

func TestPort(t *testing.T) {
	cfg := &Config{APIPort: 5001, MCPPort: 8767, Neo4jBoltPort: 7687, BugMCPPort: 5005}

	tests := []struct {
		service string
		want    int
		wantErr bool
	}{
		{"api", 5001, false},
		{"mcp", 8767, false},
		{"neo4j-bolt", 7687, false},
		{"bug-mcp", 5005, false},
		{"frontend", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.service, func(t *testing.T) {
			got, err := cfg.Port(tt.service)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Port(%q) error = %v, wantErr %v", tt.service, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Port(%q) = %d, want %d", tt.service, got, tt.want)
			}
		})
	}
}
