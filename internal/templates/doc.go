// Package templates rewrites issue and pull request templates across a
// repository fleet and proposes the result as a pull request.
package templates
