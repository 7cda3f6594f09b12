package main

import (
	"github.com/autopeer-io/bootguard/cmd/bootguardd/app"
)

func main() {
	app.NewApp().Run()
}
