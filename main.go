//go:generate weaver generate . ./pkg/api ./pkg/services ./pkg/model ./pkg/trace

package main

import (
	"context"
	"log"

	"github.com/ServiceWeaver/weaver"

	"freet/pkg/api"
)

func main() {
	if err := weaver.Run(context.Background(), api.Serve); err != nil {
		log.Fatal(err)
	}
}
