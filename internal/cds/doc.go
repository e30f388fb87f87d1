// Package cds provides a client for the Copernicus Climate Data Store
// retrieval API.
//
// A retrieval is asynchronous on the server side: the client submits a
// request, polls the resulting job until it finishes and then streams
// the produced file. All three phases are wrapped by Retrieve.
//
// # Usage
//
//	client := cds.NewClient(cds.Options{Key: key})
//
//	f, _ := os.Create("t2m_2000.nc")
//	n, err := client.Retrieve(ctx, cds.Request{
//	    Dataset:     "reanalysis-era5-single-levels",
//	    ProductType: "reanalysis",
//	    Variables:   []string{"2m_temperature"},
//	    Year:        2000,
//	    Months:      months,
//	    Days:        days,
//	    Hours:       hours,
//	    Format:      "netcdf",
//	}, f)
//
// Calls are single-shot; callers decide what to retry.
package cds
