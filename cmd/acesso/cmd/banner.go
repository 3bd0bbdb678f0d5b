package cmd

import (
	"fmt"
)

const banner = `
     /\
    /  \   ___ ___  ___ ___  ___  ___
   / /\ \ / __/ _ \/ __/ __|/ _ \/ __|
  / ____ \ (_|  __/\__ \__ \ (_) \__ \
 /_/    \_\___\___||___/___/\___/|___/

`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Client Records Vault - Version %s\x1b[0m\n\n", Version)
}
