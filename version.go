package gocbsessx

import "github.com/couchbase/gocbsessx/contrib/buildversion"

var buildVersion string = buildversion.GetVersion("github.com/couchbase/gocbsessx")
