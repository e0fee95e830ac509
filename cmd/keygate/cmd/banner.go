package cmd

import "fmt"

func printBanner() {
	fmt.Println(`
  _                         _
 | | _____ _   _  __ _  __ _| |_ ___
 | |/ / _ \ | | |/ _` + "`" + ` |/ _` + "`" + ` | __/ _ \
 |   <  __/ |_| | (_| | (_| | ||  __/
 |_|\_\___|\__, |\__, |\__,_|\__\___|
           |___/ |___/`)
}
