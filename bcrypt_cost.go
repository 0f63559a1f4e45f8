//go:build !race

package gateway

func passwordHashCost() int {
	return 14
}
