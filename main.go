package main

import (
	"github.com/pharmaboost/pharmaboost/internal/build"
	"github.com/pharmaboost/pharmaboost/internal/cmd"
)

var version = "dev"

func main() {
	build.Version = version
	cmd.Execute()
}
