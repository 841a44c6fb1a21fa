package serializer

import "time"

// TimeSerializer time.Time 以毫秒时间戳存为 INTEGER
type TimeSerializer struct{}

func NewTimeSerializer() *TimeSerializer {
	return &TimeSerializer{}
}

func (s *TimeSerializer) Serialize(from time.Time) (int64, error) {
	return from.UnixMilli(), nil
}

func (s *TimeSerializer) Deserialize(to int64) (time.Time, error) {
	return time.UnixMilli(to), nil
}

// DurationSerializer time.Duration 以纳秒存为 INTEGER
type DurationSerializer struct{}

func NewDurationSerializer() *DurationSerializer {
	return &DurationSerializer{}
}

func (s *DurationSerializer) Serialize(from time.Duration) (int64, error) {
	return int64(from), nil
}

func (s *DurationSerializer) Deserialize(to int64) (time.Duration, error) {
	return time.Duration(to), nil
}
