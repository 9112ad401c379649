package storage

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	log "github.com/sirupsen/logrus"
)

// S3Replica is an implementation of Replica backed by AWS S3. Each note is
// an object named after the note file, under an optional key prefix.
type S3Replica struct {
	profile string
	region  string
	bucket  string
	prefix  string
	client  *s3.S3
}

func NewS3Replica(profile, region, bucket, prefix string) *S3Replica {
	return &S3Replica{
		profile: profile,
		region:  region,
		bucket:  bucket,
		prefix:  prefix,
	}
}

func (r *S3Replica) PutNote(name string, text []byte) (err error) {
	err = r.ensureClient()
	if err == nil {
		_, err = r.client.PutObject(&s3.PutObjectInput{
			Bucket:      aws.String(r.bucket),
			Key:         aws.String(r.keyFor(name)),
			Body:        bytes.NewReader(text),
			ContentType: aws.String("text/plain; charset=utf-8"),
		})
	}
	return
}

func (r *S3Replica) DeleteNote(name string) (err error) {
	err = r.ensureClient()
	if err == nil {
		_, err = r.client.DeleteObject(&s3.DeleteObjectInput{
			Bucket: aws.String(r.bucket),
			Key:    aws.String(r.keyFor(name)),
		})
	}
	return
}

// GetNote returns the replicated text of a note.
func (r *S3Replica) GetNote(name string) (text []byte, err error) {
	if err := r.ensureClient(); err != nil {
		return nil, err
	}
	key := r.keyFor(name)
	output, err := r.client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if rfErr, ok := err.(awserr.RequestFailure); ok {
			if rfErr.StatusCode() == http.StatusNotFound {
				return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
			}
		}
		return nil, err
	}
	defer func() {
		if err := output.Body.Close(); err != nil {
			log.WithFields(log.Fields{
				"op":  "get",
				"key": key,
			}).Warning("Could not close response body")
		}
	}()
	return ioutil.ReadAll(output.Body)
}

func (r *S3Replica) keyFor(name string) string {
	return r.prefix + name + NoteSuffix
}

func (r *S3Replica) ensureClient() error {
	if r.client != nil {
		return nil
	}
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(r.region),
		Credentials: credentials.NewSharedCredentials("", r.profile),
	})
	if err != nil {
		return err
	}
	r.client = s3.New(sess)
	return nil
}
