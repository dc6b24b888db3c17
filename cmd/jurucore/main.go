package main

import (
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/cli"
)

func main() {
	cli.Execute()
}
