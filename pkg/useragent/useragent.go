package useragent

import (
	"fmt"
	"runtime"

	"github.com/agentcore/agentcore/pkg/version"
)

var Header = fmt.Sprintf("Agentcore/%s (%s; %s)", version.Version, runtime.GOOS, runtime.GOARCH)
