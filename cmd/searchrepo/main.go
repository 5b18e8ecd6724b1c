// Command searchrepo resolves declared string queries and runs them against an
// Elasticsearch or OpenSearch cluster.
package main

import "github.com/nimburion/searchrepo/pkg/cli"

func main() {
	cli.Execute(cli.NewCommand(cli.CommandOptions{
		Name:        "searchrepo",
		Description: "Resolve and run placeholder string queries against a search cluster",
	}))
}
