package eastmoney

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Endpoints holds the upstream aggregator URLs. The defaults point at the
// public quote endpoints; a YAML file can redirect them, which the tests
// use to point the client at a local server.
type Endpoints struct {
	LimitUpPoolURL   string `yaml:"limit_up_pool_url"`
	LimitDownPoolURL string `yaml:"limit_down_pool_url"`
	BurstPoolURL     string `yaml:"burst_pool_url"`
	SnapshotURL      string `yaml:"snapshot_url"`
	BoardListURL     string `yaml:"board_list_url"`
	PageSize         int    `yaml:"page_size"`
}

// DefaultEndpoints returns the public aggregator endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		LimitUpPoolURL:   "https://push2ex.eastmoney.com/getTopicZTPool",
		LimitDownPoolURL: "https://push2ex.eastmoney.com/getTopicDTPool",
		BurstPoolURL:     "https://push2ex.eastmoney.com/getTopicZBPool",
		SnapshotURL:      "https://82.push2.eastmoney.com/api/qt/clist/get",
		BoardListURL:     "https://82.push2.eastmoney.com/api/qt/clist/get",
		PageSize:         500,
	}
}

// LoadEndpoints reads an endpoint override file over the defaults. An empty
// path returns the defaults unchanged.
func LoadEndpoints(path string) (Endpoints, error) {
	eps := DefaultEndpoints()
	if path == "" {
		return eps, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return eps, fmt.Errorf("failed to read endpoints config: %w", err)
	}
	if err := yaml.Unmarshal(data, &eps); err != nil {
		return eps, fmt.Errorf("failed to parse endpoints YAML: %w", err)
	}
	if eps.PageSize <= 0 {
		eps.PageSize = DefaultEndpoints().PageSize
	}
	return eps, nil
}
