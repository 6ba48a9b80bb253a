package hooks

// WriteInput narrows Request.ToolInput for tool_name == "Write".
type WriteInput struct {
	FilePath string
	Content  string
}

// EditInput narrows Request.ToolInput for tool_name == "Edit".
type EditInput struct {
	FilePath   string
	OldString  string
	NewString  string
	ReplaceAll bool
}

// AsWriteInput narrows a raw tool_input map into a WriteInput. ok is false
// if required fields are missing or the wrong type.
func AsWriteInput(raw map[string]any) (WriteInput, bool) {
	path, ok := raw["file_path"].(string)
	if !ok {
		return WriteInput{}, false
	}
	content, ok := raw["content"].(string)
	if !ok {
		return WriteInput{}, false
	}
	return WriteInput{FilePath: path, Content: content}, true
}

// AsEditInput narrows a raw tool_input map into an EditInput.
func AsEditInput(raw map[string]any) (EditInput, bool) {
	path, ok := raw["file_path"].(string)
	if !ok {
		return EditInput{}, false
	}
	oldStr, ok := raw["old_string"].(string)
	if !ok {
		return EditInput{}, false
	}
	newStr, ok := raw["new_string"].(string)
	if !ok {
		return EditInput{}, false
	}
	replaceAll, _ := raw["replace_all"].(bool)
	return EditInput{FilePath: path, OldString: oldStr, NewString: newStr, ReplaceAll: replaceAll}, true
}
