package detect

import (
	"fmt"
	"strings"
)

// ObjectType is a detector class label. Values follow the 80-class COCO
// index order used by YOLO-family models.
type ObjectType uint8

const (
	Person ObjectType = iota
	Bicycle
	Car
	Motorcycle
	Airplane
	Bus
	Train
	Truck
	Boat
	TrafficLight
	FireHydrant
	StopSign
	ParkingMeter
	Bench
	Bird
	Cat
	Dog
	Horse
	Sheep
	Cow
	Elephant
	Bear
	Zebra
	Giraffe
	Backpack
	Umbrella
	Handbag
	Tie
	Suitcase
	Frisbee
	Skis
	Snowboard
	SportsBall
	Kite
	BaseballBat
	BaseballGlove
	Skateboard
	Surfboard
	TennisRacket
	Bottle
	WineGlass
	Cup
	Fork
	Knife
	Spoon
	Bowl
	Banana
	Apple
	Sandwich
	Orange
	Broccoli
	Carrot
	HotDog
	Pizza
	Donut
	Cake
	Chair
	Couch
	PottedPlant
	Bed
	DiningTable
	Toilet
	TV
	Laptop
	Mouse
	Remote
	Keyboard
	CellPhone
	Microwave
	Oven
	Toaster
	Sink
	Refrigerator
	Book
	Clock
	Vase
	Scissors
	TeddyBear
	HairDrier
	Toothbrush

	numObjectTypes
)

var objectTypeNames = [numObjectTypes]string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck",
	"boat", "traffic light", "fire hydrant", "stop sign", "parking meter", "bench",
	"bird", "cat", "dog", "horse", "sheep", "cow", "elephant", "bear", "zebra",
	"giraffe", "backpack", "umbrella", "handbag", "tie", "suitcase", "frisbee",
	"skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "wine glass", "cup",
	"fork", "knife", "spoon", "bowl", "banana", "apple", "sandwich", "orange",
	"broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch",
	"potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear",
	"hair drier", "toothbrush",
}

// NumObjectTypes is the number of known classes.
const NumObjectTypes = int(numObjectTypes)

// Valid reports whether t is a known class.
func (t ObjectType) Valid() bool { return t < numObjectTypes }

func (t ObjectType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("ObjectType(%d)", uint8(t))
	}
	return objectTypeNames[t]
}

// ParseObjectType accepts a COCO label ("traffic light"), its snake_case
// spelling ("traffic_light") or a numeric class index.
func ParseObjectType(s string) (ObjectType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.ReplaceAll(name, "_", " ")
	for i, n := range objectTypeNames {
		if n == name {
			return ObjectType(i), nil
		}
	}
	var idx int
	if _, err := fmt.Sscanf(name, "%d", &idx); err == nil && fmt.Sprint(idx) == name {
		if idx >= 0 && idx < NumObjectTypes {
			return ObjectType(idx), nil
		}
	}
	return 0, fmt.Errorf("unknown object type %q", s)
}

// ParseObjectTypes parses a comma-separated list. An empty string yields nil.
func ParseObjectTypes(s string) ([]ObjectType, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]ObjectType, 0, len(parts))
	for _, p := range parts {
		t, err := ParseObjectType(p)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// MarshalText encodes the class by label.
func (t ObjectType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid object type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText accepts anything ParseObjectType does.
func (t *ObjectType) UnmarshalText(b []byte) error {
	v, err := ParseObjectType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
