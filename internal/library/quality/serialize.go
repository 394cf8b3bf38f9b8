package quality

import "encoding/json"

func serializeFormatItems(items []FormatItem) (string, error) {
	if items == nil {
		items = []FormatItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func deserializeFormatItems(data string) ([]FormatItem, error) {
	if data == "" {
		return nil, nil
	}
	var items []FormatItem
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, err
	}
	return items, nil
}
