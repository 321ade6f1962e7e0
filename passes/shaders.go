package passes

import _ "embed"

//go:embed shaders/depth.wgsl
var depthWGSL string

//go:embed shaders/ssao.wgsl
var ssaoWGSL string

//go:embed shaders/lightcull.wgsl
var lightCullWGSL string

//go:embed shaders/forward.wgsl
var forwardWGSL string

//go:embed shaders/debugbounds.wgsl
var debugBoundsWGSL string

//go:embed shaders/ui.wgsl
var uiWGSL string
