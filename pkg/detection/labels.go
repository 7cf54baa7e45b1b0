package detection

import "fmt"

// Labels maps detector class ids to names.
type Labels map[int64]string

// Name returns the label for id, or "class_<id>" when unknown.
func (l Labels) Name(id int64) string {
	if name, ok := l[id]; ok {
		return name
	}
	return fmt.Sprintf("class_%d", id)
}

// Names maps every id in classes to its label.
func (l Labels) Names(classes []int64) []string {
	out := make([]string, len(classes))
	for i, c := range classes {
		out[i] = l.Name(c)
	}
	return out
}

// COCOLabels returns the 90-id COCO label map used by TensorFlow
// object detection models (id 0 is background, some ids are unused).
func COCOLabels() Labels {
	labels := make(Labels, len(COCOClasses))
	for i, name := range COCOClasses {
		labels[cocoIDs[i]] = name
	}
	return labels
}

// COCOClasses contains the 80 COCO class names
var COCOClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator",
	"book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

// cocoIDs are the 90-id label map ids of COCOClasses, index for index.
var cocoIDs = [...]int64{
	1, 2, 3, 4, 5, 6, 7, 8, 9,
	10, 11, 13, 14, 15, 16, 17,
	18, 19, 20, 21, 22, 23, 24, 25, 27,
	28, 31, 32, 33, 34, 35, 36, 37,
	38, 39, 40, 41, 42, 43,
	44, 46, 47, 48, 49, 50, 51, 52, 53,
	54, 55, 56, 57, 58, 59, 60, 61, 62,
	63, 64, 65, 67, 70, 72, 73, 74,
	75, 76, 77, 78, 79, 80, 81, 82,
	84, 85, 86, 87, 88, 89, 90,
}
