package main

import (
	"BranchLMS/internal/bootstrap"
	pkg "BranchLMS/pkg/routes"

	"go.uber.org/fx"
)

func main() {
	bootstrap.Loadenv()

	app := fx.New(
		pkg.Modules,
		fx.WithLogger(bootstrap.FxLogger),
	)

	app.Run()
}
