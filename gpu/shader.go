package gpu

const vertex = `
#version 410

in vec2 vertPos;

void main() {
    gl_Position = vec4(vertPos, 0, 1);
}
`

// The fragment stage is the resolve pass: every window pixel is mapped back
// onto the logical surface, sampled without filtering and looked up in the
// palette texture.
const fragment = `
#version 410

uniform sampler2D indices;
uniform sampler2D palette;

uniform vec2  scale;
uniform vec2  offset;
uniform vec2  logical;
uniform float viewportHeight;
uniform vec4  border;
uniform bool  transparent;

out vec4 outputColor;

void main() {
    // gl_FragCoord has its origin in the bottom left; the surface's is top left.
    vec2 frag = vec2(gl_FragCoord.x, viewportHeight - gl_FragCoord.y);
    vec2 l = (frag - offset) / scale;

    if (any(lessThan(l, vec2(0))) || any(greaterThanEqual(l, logical))) {
        outputColor = border;
        return;
    }

    int i = int(texelFetch(indices, ivec2(floor(l)), 0).r * 255.0 + 0.5);
    if (transparent && i == 0) {
        outputColor = vec4(0);
        return;
    }

    outputColor = vec4(texelFetch(palette, ivec2(i, 0), 0).rgb, 1);
}
`
