// Package autoload initialises the global logger from LOG_* variables on
// import.
package autoload

import (
	configx "github.com/tanpawarit/chative-commerce/pkg/config"
	logx "github.com/tanpawarit/chative-commerce/pkg/logger"
)

func init() {
	conf, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*conf)
}
