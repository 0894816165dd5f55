// Command kpagg consolidates dense pairwise correspondences into canonical
// keypoint sets and match arrays.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
