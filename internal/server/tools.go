package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var sceneProperty = map[string]interface{}{
	"type":        "string",
	"description": "Scene reference: \"demo\", a .json scene file, or a SQLite file optionally suffixed with #scene. Defaults to the configured scene.",
}

var tiePolicyProperty = map[string]interface{}{
	"type":        "string",
	"enum":        []string{"first", "strict"},
	"description": "What to do when candidates tie on the criterion: keep the first (default from configuration) or fail as ambiguous",
}

var targetsProperty = map[string]interface{}{
	"type":                 "object",
	"additionalProperties": map[string]interface{}{"type": "string"},
	"description":          "Map of output role to target query, e.g. {\"mug\": \"first:blue mug\", \"branch\": \"left branch\"}. Defaults to that plan when omitted.",
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Scene Information
		{
			Name:        "scene_load",
			Description: "Load a scene and return its categories and object count. Scenes stay cached for subsequent calls.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"scene": sceneProperty,
				},
			},
		},
		{
			Name:        "scene_categories",
			Description: "List the object categories present in a scene.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"scene": sceneProperty,
				},
			},
		},

		// Detection
		{
			Name:        "scene_detect",
			Description: "Detect every instance of a category (or a single instance descriptor such as \"blue mug\") and return one point set per instance with its centroid.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"scene": sceneProperty,
					"label": map[string]interface{}{
						"type":        "string",
						"description": "Category or instance descriptor",
					},
					"summary_only": map[string]interface{}{
						"type":        "boolean",
						"description": "Omit the points and return only centroids and counts (default false)",
						"default":     false,
					},
				},
				"required": []string{"label"},
			},
		},
		{
			Name:        "scene_find_instance",
			Description: "Find a named instance within a category and return its index among the category's detections and its point set.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"scene": sceneProperty,
					"instance": map[string]interface{}{
						"type":        "string",
						"description": "Instance descriptor, e.g. \"blue mug\"",
					},
					"category": map[string]interface{}{
						"type":        "string",
						"description": "Category to search, e.g. \"mug\". Defaults to the descriptor's last word.",
					},
				},
				"required": []string{"instance"},
			},
		},

		// Selection
		{
			Name:        "scene_select",
			Description: "Pick one instance of a category by a geometric criterion (leftmost, rightmost, top, bottom, front, back, nearest, farthest, largest, smallest) applied to centroids.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"scene": sceneProperty,
					"category": map[string]interface{}{
						"type":        "string",
						"description": "Category to choose from",
					},
					"criterion": map[string]interface{}{
						"type":        "string",
						"description": "Criterion word (default \"leftmost\")",
						"default":     "leftmost",
					},
					"reference": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "number"},
						"description": "Reference point [x, y, z] for nearest/farthest (default origin)",
					},
					"tie_policy": tiePolicyProperty,
				},
				"required": []string{"category"},
			},
		},

		// Composition
		{
			Name:        "scene_compose",
			Description: "Resolve several target queries and return a mapping from role to selected point set. Fails as a whole if any target cannot be resolved.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"scene":      sceneProperty,
					"targets":    targetsProperty,
					"tie_policy": tiePolicyProperty,
				},
			},
		},

		// Measurement
		{
			Name:        "scene_measure",
			Description: "Measure the distance and direction between the centroids of two targets.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"scene": sceneProperty,
					"a": map[string]interface{}{
						"type":        "string",
						"description": "First target query",
					},
					"b": map[string]interface{}{
						"type":        "string",
						"description": "Second target query",
					},
				},
				"required": []string{"a", "b"},
			},
		},
		{
			Name:        "scene_check_alignment",
			Description: "Check whether the centroids of several targets line up along X, Y or Z.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"scene": sceneProperty,
					"targets": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Target queries to compare (at least two)",
					},
					"tolerance": map[string]interface{}{
						"type":        "number",
						"description": "Maximum spread, in scene units, to count as aligned (default 0.05)",
						"default":     0.05,
					},
				},
				"required": []string{"targets"},
			},
		},

		// Synthetic Data
		{
			Name:        "scene_generate",
			Description: "Generate a synthetic point cloud (sphere, cube, torus, cylinder, pyramid).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"shape": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"sphere", "cube", "torus", "cylinder", "pyramid"},
						"description": "Shape to sample",
					},
					"count": map[string]interface{}{
						"type":        "integer",
						"description": "Number of points (default 1000)",
						"default":     1000,
					},
					"seed": map[string]interface{}{
						"type":        "integer",
						"description": "Random seed (default 1)",
						"default":     1,
					},
				},
				"required": []string{"shape"},
			},
		},

		// Rendering
		{
			Name:        "scene_render",
			Description: "Render composed targets as a PNG projection (top, front or side) or an interactive HTML 3D scatter.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"scene":   sceneProperty,
					"targets": targetsProperty,
					"format": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"png", "html"},
						"description": "Output format (default png)",
						"default":     "png",
					},
					"view": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"top", "front", "side"},
						"description": "Projection direction for png (default top)",
						"default":     "top",
					},
					"size": map[string]interface{}{
						"type":        "integer",
						"description": "Image edge length in pixels, 16 to 4096 (default from configuration)",
						"minimum":     16,
						"maximum":     4096,
					},
					"splat": map[string]interface{}{
						"type":        "number",
						"description": "Gaussian point softening radius in pixels, at most 32 (default 1.0, 0 for hard points)",
						"default":     1.0,
					},
					"grid_spacing": map[string]interface{}{
						"type":        "number",
						"description": "Overlay a grid every N scene units, at most 200 lines per axis (default none)",
					},
				},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
