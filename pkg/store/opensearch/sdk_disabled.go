//go:build !elasticsearch_sdk || !opensearch_sdk

package opensearch

import "fmt"

// sdkDisabled explains which build tag enables an SDK backed adapter.
func sdkDisabled(driver, tag string) error {
	return fmt.Errorf("%s adapter is not enabled; rebuild with `-tags %s`", driver, tag)
}
