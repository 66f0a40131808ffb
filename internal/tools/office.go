package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/mkrall/clerk/internal/office"
	"github.com/mkrall/clerk/pkg/models"
)

// RegisterOfficeTools wires the document automation capabilities backed by
// the office server into the registry.
func RegisterOfficeTools(reg *Registry, client *office.Client) error {
	defs := []Definition{
		{
			Name:        "word_create",
			Description: "Create a new blank Word document. Launches Word if needed.",
			Parameters:  objectSchema(nil, nil),
			Mutating:    true,
			Handler:     postHandler(client, "/word/create"),
		},
		{
			Name:        "word_write",
			Description: "Insert text at the cursor in the active Word document. Supports optional formatting.",
			Parameters: objectSchema(map[string]interface{}{
				"text":      prop("string", "Text to insert"),
				"font_name": prop("string", "Font family, e.g. Calibri"),
				"font_size": prop("number", "Font size in points"),
				"bold":      prop("boolean", "Apply bold"),
				"italic":    prop("boolean", "Apply italic"),
			}, []string{"text"}),
			Mutating: true,
			Handler:  postHandler(client, "/word/write"),
		},
		{
			Name:        "word_read",
			Description: "Read the full text content of the active Word document.",
			Parameters:  objectSchema(nil, nil),
			Handler:     getHandler(client, "/word/read"),
		},
		{
			Name:        "word_find_replace",
			Description: "Find and replace all occurrences of a string in the active Word document.",
			Parameters: objectSchema(map[string]interface{}{
				"find":    prop("string", "Text to find"),
				"replace": prop("string", "Replacement text"),
			}, []string{"find", "replace"}),
			Mutating: true,
			Handler:  postHandler(client, "/word/find_replace"),
		},
		{
			Name:        "word_save",
			Description: "Save the active Word document to a path.",
			Parameters: objectSchema(map[string]interface{}{
				"path": prop("string", "Absolute path to save to, including extension"),
			}, []string{"path"}),
			Mutating: true,
			Handler:  postHandler(client, "/word/save"),
		},
		{
			Name:        "excel_create",
			Description: "Create a new blank Excel workbook. Launches Excel if needed.",
			Parameters:  objectSchema(nil, nil),
			Mutating:    true,
			Handler:     postHandler(client, "/excel/create"),
		},
		{
			Name:        "excel_write_cell",
			Description: "Write a value into a single cell of the active workbook.",
			Parameters: objectSchema(map[string]interface{}{
				"sheet": prop("string", "Sheet name; defaults to the active sheet"),
				"cell":  prop("string", "Cell reference, e.g. B4"),
				"value": prop("string", "Value to write"),
			}, []string{"cell", "value"}),
			Mutating: true,
			Handler:  postHandler(client, "/excel/write_cell"),
		},
		{
			Name:        "excel_write_range",
			Description: "Write a rectangular block of values starting at a cell.",
			Parameters: objectSchema(map[string]interface{}{
				"sheet": prop("string", "Sheet name; defaults to the active sheet"),
				"start": prop("string", "Top-left cell reference, e.g. A1"),
				"values": map[string]interface{}{
					"type":        "array",
					"description": "Rows of cell values",
					"items": map[string]interface{}{
						"type":  "array",
						"items": map[string]interface{}{"type": "string"},
					},
				},
			}, []string{"start", "values"}),
			Mutating: true,
			Handler:  postHandler(client, "/excel/write_range"),
		},
		{
			Name:        "excel_read_range",
			Description: "Read a range of cells from the active workbook.",
			Parameters: objectSchema(map[string]interface{}{
				"sheet": prop("string", "Sheet name; defaults to the active sheet"),
				"range": prop("string", "Range reference, e.g. A1:C10"),
			}, []string{"range"}),
			Handler: postHandler(client, "/excel/read_range"),
		},
		{
			Name:        "excel_set_formula",
			Description: "Set a formula in a cell, e.g. =SUM(A1:A10).",
			Parameters: objectSchema(map[string]interface{}{
				"sheet":   prop("string", "Sheet name; defaults to the active sheet"),
				"cell":    prop("string", "Cell reference"),
				"formula": prop("string", "Formula text starting with ="),
			}, []string{"cell", "formula"}),
			Mutating: true,
			Handler:  postHandler(client, "/excel/set_formula"),
		},
		{
			Name:        "excel_add_sheet",
			Description: "Add a new sheet to the active workbook.",
			Parameters: objectSchema(map[string]interface{}{
				"name": prop("string", "Name for the new sheet"),
			}, []string{"name"}),
			Mutating: true,
			Handler:  postHandler(client, "/excel/add_sheet"),
		},
		{
			Name:        "excel_save",
			Description: "Save the active workbook to a path.",
			Parameters: objectSchema(map[string]interface{}{
				"path": prop("string", "Absolute path to save to, including extension"),
			}, []string{"path"}),
			Mutating: true,
			Handler:  postHandler(client, "/excel/save"),
		},
		{
			Name:        "powerpoint_create",
			Description: "Create a new blank PowerPoint presentation. Launches PowerPoint if needed.",
			Parameters:  objectSchema(nil, nil),
			Mutating:    true,
			Handler:     postHandler(client, "/powerpoint/create"),
		},
		{
			Name:        "powerpoint_add_slide",
			Description: "Append a slide to the active presentation. Returns the new slide number.",
			Parameters: objectSchema(map[string]interface{}{
				"layout": prop("number", "Slide layout index; defaults to 1 (title slide)"),
			}, nil),
			Mutating: true,
			Handler:  postHandler(client, "/powerpoint/add_slide"),
		},
		{
			Name:        "powerpoint_write_text",
			Description: "Write text into a shape on a slide. Shape 1 is usually the title placeholder.",
			Parameters: objectSchema(map[string]interface{}{
				"slide":     prop("number", "Slide number, 1-based"),
				"shape":     prop("number", "Shape index on the slide, 1-based"),
				"text":      prop("string", "Text to write"),
				"font_name": prop("string", "Font family, e.g. Calibri"),
				"font_size": prop("number", "Font size in points"),
				"bold":      prop("boolean", "Apply bold"),
				"italic":    prop("boolean", "Apply italic"),
			}, []string{"slide", "text"}),
			Mutating: true,
			Handler:  postHandler(client, "/powerpoint/write_text"),
		},
		{
			Name:        "powerpoint_read_slide",
			Description: "Read the shapes and text of one slide of the active presentation.",
			Parameters: objectSchema(map[string]interface{}{
				"slide": prop("number", "Slide number, 1-based"),
			}, []string{"slide"}),
			Handler: postHandler(client, "/powerpoint/read_slide"),
		},
		{
			Name:        "powerpoint_get_slide_count",
			Description: "Count the slides in the active presentation.",
			Parameters:  objectSchema(nil, nil),
			Handler:     getHandler(client, "/powerpoint/get_slide_count"),
		},
		{
			Name:        "powerpoint_save",
			Description: "Save the active presentation to a path.",
			Parameters: objectSchema(map[string]interface{}{
				"path": prop("string", "Absolute path to save to, including extension"),
			}, []string{"path"}),
			Mutating: true,
			Handler:  postHandler(client, "/powerpoint/save"),
		},
		{
			Name:        "word_screenshot",
			Description: "Capture a screenshot of the active Word document and save it as a PNG file.",
			Parameters: objectSchema(map[string]interface{}{
				"path": prop("string", "File path to save the PNG to; a temp file is used when omitted"),
			}, nil),
			Handler: screenshotHandler(client, "word"),
		},
		{
			Name:        "excel_screenshot",
			Description: "Capture a screenshot of the active workbook and save it as a PNG file.",
			Parameters: objectSchema(map[string]interface{}{
				"path": prop("string", "File path to save the PNG to; a temp file is used when omitted"),
			}, nil),
			Handler: screenshotHandler(client, "excel"),
		},
		{
			Name:        "powerpoint_screenshot",
			Description: "Capture a screenshot of the active presentation and save it as a PNG file.",
			Parameters: objectSchema(map[string]interface{}{
				"path": prop("string", "File path to save the PNG to; a temp file is used when omitted"),
			}, nil),
			Handler: screenshotHandler(client, "powerpoint"),
		},
	}

	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func postHandler(client *office.Client, path string) Handler {
	return func(ctx context.Context, args json.RawMessage) models.ToolResult {
		var payload map[string]interface{}
		if len(args) > 0 {
			if err := json.Unmarshal(args, &payload); err != nil {
				return models.ToolResult{Success: false, Error: fmt.Sprintf("invalid arguments: %v", err)}
			}
		}
		result, err := client.Post(ctx, path, payload)
		if err != nil {
			return models.ToolResult{Success: false, Error: err.Error()}
		}
		return toToolResult(result)
	}
}

func getHandler(client *office.Client, path string) Handler {
	return func(ctx context.Context, args json.RawMessage) models.ToolResult {
		query := url.Values{}
		if len(args) > 0 {
			var payload map[string]interface{}
			if err := json.Unmarshal(args, &payload); err != nil {
				return models.ToolResult{Success: false, Error: fmt.Sprintf("invalid arguments: %v", err)}
			}
			for key, value := range payload {
				query.Set(key, fmt.Sprint(value))
			}
		}
		result, err := client.Get(ctx, path, query)
		if err != nil {
			return models.ToolResult{Success: false, Error: err.Error()}
		}
		return toToolResult(result)
	}
}

// screenshotHandler captures the given app and writes the PNG to the
// requested path, or a temp file when none is given. The model gets the
// file location back, not the image bytes.
func screenshotHandler(client *office.Client, app string) Handler {
	return func(ctx context.Context, args json.RawMessage) models.ToolResult {
		var params struct {
			Path string `json:"path"`
		}
		if len(args) > 0 {
			if err := json.Unmarshal(args, &params); err != nil {
				return models.ToolResult{Success: false, Error: fmt.Sprintf("invalid arguments: %v", err)}
			}
		}

		png, err := client.Screenshot(ctx, app)
		if err != nil {
			return models.ToolResult{Success: false, Error: err.Error()}
		}

		path := params.Path
		if path == "" {
			path = filepath.Join(os.TempDir(), fmt.Sprintf("clerk-%s-%d.png", app, time.Now().UnixNano()))
		}
		if err := os.WriteFile(path, png, 0644); err != nil {
			return models.ToolResult{Success: false, Error: fmt.Sprintf("saving screenshot: %v", err)}
		}
		return models.ToolResult{Success: true, Output: fmt.Sprintf("screenshot saved to %s (%d bytes)", path, len(png))}
	}
}

// toToolResult flattens the server envelope. The server merges endpoint
// data into the envelope at the top level, so a response with keys beyond
// success and message passes through whole; the model needs the payload,
// not just the outcome line.
func toToolResult(result *office.Result) models.ToolResult {
	if !result.Success {
		msg := result.Error
		if result.Details != "" {
			msg = fmt.Sprintf("%s: %s", msg, result.Details)
		}
		return models.ToolResult{Success: false, Error: msg}
	}
	if hasPayload(result.Raw) {
		return models.ToolResult{Success: true, Output: string(result.Raw)}
	}
	return models.ToolResult{Success: true, Output: result.Message}
}

func hasPayload(raw json.RawMessage) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	delete(fields, "success")
	delete(fields, "message")
	return len(fields) > 0
}

func objectSchema(props map[string]interface{}, required []string) map[string]interface{} {
	if props == nil {
		props = map[string]interface{}{}
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func prop(typ, desc string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": desc}
}
