package middleware

import "github.com/gin-gonic/gin"

const (
	documentIDKey       = "documentId"
	signStepKey         = "signStep"
	statusTransitionKey = "statusTransition"
)

// SetDocumentID tags the request log line with the document it touched.
func SetDocumentID(c *gin.Context, id string) {
	c.Set(documentIDKey, id)
}

// SetSignStep records which signing step the caller acted in.
func SetSignStep(c *gin.Context, step int) {
	c.Set(signStepKey, step)
}

// SetStatusTransition records the document status after the request.
func SetStatusTransition(c *gin.Context, status string) {
	c.Set(statusTransitionKey, status)
}
