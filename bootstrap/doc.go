// Package bootstrap orchestrates the service lifecycle.
//
// It validates typed configuration, registers components in dependency
// order, runs startup/shutdown hooks and stops everything on SIGINT or
// SIGTERM.
//
// # Quick Start
//
//	app, err := bootstrap.NewApp(&cfg)
//	if err != nil {
//	    return err
//	}
//	_ = app.RegisterComponent(rabbitComponent)
//	_ = app.RegisterComponent(serverComponent)
//	return app.Run(ctx)
package bootstrap
