package main

// this describes the structure of the event received from S3

type Events struct {
	Records []S3EventRecord `json:"Records"`
}

type S3EventRecord struct {
	EventSource string   `json:"eventSource"`
	AwsRegion   string   `json:"awsRegion"`
	EventName   string   `json:"eventName"`
	S3          S3Record `json:"s3"`
}

type S3Record struct {
	Bucket BucketRecord `json:"bucket"`
	Object ObjectRecord `json:"object"`
}

type BucketRecord struct {
	Name string `json:"name"`
}

type ObjectRecord struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

// ObjectRef names the object a trigger event refers to
type ObjectRef struct {
	Bucket string
	Key    string
}

//
// end of file
//
