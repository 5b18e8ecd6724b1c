package version

import (
	"fmt"
	"strings"
)

// Search engine distributions reported by the cluster root endpoint.
const (
	DistributionElasticsearch = "elasticsearch"
	DistributionOpenSearch    = "opensearch"
)

// Oldest cluster versions whose search responses report hits.total as an object.
var (
	MinElasticsearch = MustParse("7.0.0")
	MinOpenSearch    = MustParse("1.0.0")
)

// CheckCluster verifies a cluster version is supported. An empty distribution means
// Elasticsearch.
func CheckCluster(distribution, number string) (SemVer, error) {
	distribution = strings.ToLower(strings.TrimSpace(distribution))
	if distribution == "" {
		distribution = DistributionElasticsearch
	}

	v, err := Parse(number)
	if err != nil {
		return SemVer{}, fmt.Errorf("cluster version: %w", err)
	}

	var minimum SemVer
	switch distribution {
	case DistributionElasticsearch:
		minimum = MinElasticsearch
	case DistributionOpenSearch:
		minimum = MinOpenSearch
	default:
		return v, fmt.Errorf("unsupported search distribution %q", distribution)
	}
	if v.Compare(minimum) < 0 {
		return v, fmt.Errorf("%s %s is older than the supported minimum %s", distribution, v, minimum)
	}
	return v, nil
}
