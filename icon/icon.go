// Package icon generates the procedural SVG artwork used for chat icons
// and user avatars: a random two-stop gradient under a fractal noise
// layer, with a light shape on top.
package icon

import (
	"fmt"
	"math/rand/v2"
)

const shapeFill = "#e9eaff"

// NewChatIcon returns the SVG document for a freshly created chat: the
// noise gradient with a centered square.
func NewChatIcon() string {
	square := `<rect x="25%" y="25%" height="50%" width="50%" fill="` + shapeFill + `"/>`
	return render(square)
}

// NewAvatar returns the SVG document for a new user: the noise gradient
// with a circle of random radius.
func NewAvatar() string {
	circle := fmt.Sprintf(`<circle cx="50%%" cy="50%%" r="%d" fill="%s"/>`, 25+rand.IntN(15), shapeFill)
	return render(circle)
}

func render(shape string) string {
	hue := rand.IntN(360)
	sat := 75 + rand.IntN(25)
	lit := 40 + rand.IntN(10)

	gradient := fmt.Sprintf(
		"linear-gradient(135deg, hsl(%ddeg, %d%%, %d%%), hsl(%ddeg, %d%%, %d%%))",
		hue, sat, lit, wrapDegrees(hue+50), sat, lit,
	)

	return fmt.Sprintf(
		`<svg width="100px" height="100px" style="background: %s" xmlns="http://www.w3.org/2000/svg">`+
			`<filter id="noise"><feTurbulence type="fractalNoise" baseFrequency="5" numOctaves="3" stitchTiles="noStitch"/></filter>`+
			`<rect filter="url(#noise)" opacity="90%%" height="100%%" width="100%%"/>`+
			`%s</svg>`,
		gradient, shape,
	)
}

// wrapDegrees keeps a hue within the color wheel.
func wrapDegrees(deg int) int {
	if deg > 360 {
		return deg - 360
	}
	return deg
}
