package main

import (
	"github.com/tanpawarit/chative-commerce/cmd"
	_ "github.com/tanpawarit/chative-commerce/pkg/logger/autoload"
)

func main() {
	cmd.Execute()
}
