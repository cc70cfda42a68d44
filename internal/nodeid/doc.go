/*
Package nodeid provides a structured representation for node names within a
pipeline graph, based on the canonical format `base@vN`.

A loaded plugin instance is named after its implementation and the plugin
interface version it targets, e.g. `colorconv@v2`. Clones of a node carry a
clone index, e.g. `colorconv@v2[3]`. Indices grow per origin and are never
handed out twice.

This package centralizes all formatting and parsing of those names.
*/
package nodeid
